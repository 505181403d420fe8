package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"presensi/internal/model"
)

// Memory is an in-process store with the same constraints as the Postgres
// schema (unique nim, unique guest kode, unique scan per registrant). It
// backs STORE_BACKEND=memory and the tests.
type Memory struct {
	mu       sync.Mutex
	seq      int64
	students map[string]memStudent
	guests   map[string]memGuest
	scans    map[string]memScan
}

type memStudent struct {
	model.Student
	seq int64
}

type memGuest struct {
	model.Guest
	seq int64
}

type memScan struct {
	model.ScanLogEntry
	seq int64
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		students: make(map[string]memStudent),
		guests:   make(map[string]memGuest),
		scans:    make(map[string]memScan),
	}
}

func (m *Memory) next() int64 {
	m.seq++
	return m.seq
}

// newest first, insertion order breaks timestamp ties
func newestFirst[T any](items []T, at func(T) (int64, int64)) {
	slices.SortStableFunc(items, func(a, b T) int {
		ta, sa := at(a)
		tb, sb := at(b)
		if c := cmp.Compare(tb, ta); c != 0 {
			return c
		}
		return cmp.Compare(sb, sa)
	})
}

// ---------- Students ----------

// ListStudents returns all students, newest first.
func (m *Memory) ListStudents(ctx context.Context) ([]model.Student, error) {
	m.mu.Lock()
	rows := make([]memStudent, 0, len(m.students))
	for _, s := range m.students {
		rows = append(rows, s)
	}
	m.mu.Unlock()

	newestFirst(rows, func(s memStudent) (int64, int64) { return s.CreatedAt.UnixNano(), s.seq })
	out := make([]model.Student, len(rows))
	for i, r := range rows {
		out[i] = r.Student
	}
	return out, nil
}

// Student returns one student by id.
func (m *Memory) Student(ctx context.Context, id string) (model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return model.Student{}, model.ErrNotFound
	}
	return s.Student, nil
}

// StudentByNIM returns the student with the given nim.
func (m *Memory) StudentByNIM(ctx context.Context, nim string) (model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.NIM == nim {
			return s.Student, nil
		}
	}
	return model.Student{}, model.ErrNotFound
}

// CreateStudents inserts all rows or none.
func (m *Memory) CreateStudents(ctx context.Context, rows []model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(rows))
	for _, s := range m.students {
		seen[s.NIM] = true
	}
	for _, r := range rows {
		if seen[r.NIM] {
			return model.ErrDuplicate
		}
		if _, ok := m.students[r.ID]; ok {
			return model.ErrDuplicate
		}
		seen[r.NIM] = true
	}
	for _, r := range rows {
		m.students[r.ID] = memStudent{Student: r, seq: m.next()}
	}
	return nil
}

// UpdateStudent rewrites the editable fields of one student.
func (m *Memory) UpdateStudent(ctx context.Context, s model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.students[s.ID]
	if !ok {
		return model.ErrNotFound
	}
	for id, other := range m.students {
		if id != s.ID && other.NIM == s.NIM {
			return model.ErrDuplicate
		}
	}
	cur.Nama, cur.NIM, cur.Prodi = s.Nama, s.NIM, s.Prodi
	m.students[s.ID] = cur
	return nil
}

// DeleteStudent removes one student.
func (m *Memory) DeleteStudent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.students, id)
	return nil
}

// CountStudents counts all students, or only those marked present.
func (m *Memory) CountStudents(ctx context.Context, attendedOnly bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.students {
		if !attendedOnly || s.Hadir {
			n++
		}
	}
	return n, nil
}

// ---------- Guests ----------

// ListGuests returns all guests, newest first.
func (m *Memory) ListGuests(ctx context.Context) ([]model.Guest, error) {
	m.mu.Lock()
	rows := make([]memGuest, 0, len(m.guests))
	for _, g := range m.guests {
		rows = append(rows, g)
	}
	m.mu.Unlock()

	newestFirst(rows, func(g memGuest) (int64, int64) { return g.CreatedAt.UnixNano(), g.seq })
	out := make([]model.Guest, len(rows))
	for i, r := range rows {
		out[i] = r.Guest
	}
	return out, nil
}

// Guest returns one guest by id.
func (m *Memory) Guest(ctx context.Context, id string) (model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[id]
	if !ok {
		return model.Guest{}, model.ErrNotFound
	}
	return g.Guest, nil
}

// GuestByKode returns the guest with the given invitation code.
func (m *Memory) GuestByKode(ctx context.Context, kode string) (model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.guests {
		if g.Kode == kode {
			return g.Guest, nil
		}
	}
	return model.Guest{}, model.ErrNotFound
}

// GuestsByNama returns every guest whose nama matches exactly.
func (m *Memory) GuestsByNama(ctx context.Context, nama string) ([]model.Guest, error) {
	m.mu.Lock()
	var rows []memGuest
	for _, g := range m.guests {
		if g.Nama == nama {
			rows = append(rows, g)
		}
	}
	m.mu.Unlock()

	newestFirst(rows, func(g memGuest) (int64, int64) { return g.CreatedAt.UnixNano(), g.seq })
	out := make([]model.Guest, len(rows))
	for i, r := range rows {
		out[i] = r.Guest
	}
	return out, nil
}

// CreateGuests inserts all rows or none.
func (m *Memory) CreateGuests(ctx context.Context, rows []model.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(rows))
	for _, g := range m.guests {
		seen[g.Kode] = true
	}
	for _, r := range rows {
		if seen[r.Kode] {
			return model.ErrDuplicate
		}
		if _, ok := m.guests[r.ID]; ok {
			return model.ErrDuplicate
		}
		seen[r.Kode] = true
	}
	for _, r := range rows {
		m.guests[r.ID] = memGuest{Guest: r, seq: m.next()}
	}
	return nil
}

// UpdateGuest rewrites the editable fields of one guest.
func (m *Memory) UpdateGuest(ctx context.Context, g model.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.guests[g.ID]
	if !ok {
		return model.ErrNotFound
	}
	cur.Nama, cur.Tipe, cur.Instansi = g.Nama, g.Tipe, g.Instansi
	m.guests[g.ID] = cur
	return nil
}

// DeleteGuest removes one guest.
func (m *Memory) DeleteGuest(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.guests[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.guests, id)
	return nil
}

// CountGuests counts all guests, or only those marked present.
func (m *Memory) CountGuests(ctx context.Context, attendedOnly bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, g := range m.guests {
		if !attendedOnly || g.Hadir {
			n++
		}
	}
	return n, nil
}

// ---------- Scan log ----------

// ClaimScan appends the entry and marks the registrant present in one step.
// A second claim for the same registrant returns model.ErrAlreadyScanned.
func (m *Memory) ClaimScan(ctx context.Context, e model.ScanLogEntry) (model.ScanLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.scans {
		if s.Jenis == e.Jenis && s.IDReferensi == e.IDReferensi {
			return model.ScanLogEntry{}, model.ErrAlreadyScanned
		}
	}
	if err := m.setHadirLocked(e.Ref(), true); err != nil {
		return model.ScanLogEntry{}, err
	}
	m.scans[e.ID] = memScan{ScanLogEntry: e, seq: m.next()}
	return e, nil
}

// ListScanLog returns the scan log, newest first.
func (m *Memory) ListScanLog(ctx context.Context) ([]model.ScanLogEntry, error) {
	m.mu.Lock()
	rows := make([]memScan, 0, len(m.scans))
	for _, s := range m.scans {
		rows = append(rows, s)
	}
	m.mu.Unlock()

	newestFirst(rows, func(s memScan) (int64, int64) { return s.WaktuScan.UnixNano(), s.seq })
	out := make([]model.ScanLogEntry, len(rows))
	for i, r := range rows {
		out[i] = r.ScanLogEntry
	}
	return out, nil
}

// DeleteScanLog removes one log row and returns it.
func (m *Memory) DeleteScanLog(ctx context.Context, id string) (model.ScanLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[id]
	if !ok {
		return model.ScanLogEntry{}, model.ErrNotFound
	}
	delete(m.scans, id)
	return s.ScanLogEntry, nil
}

// ReconcileHadir sets the registrant's hadir flag to whether a scan exists.
func (m *Memory) ReconcileHadir(ctx context.Context, ref model.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scanned := false
	for _, s := range m.scans {
		if s.Ref() == ref {
			scanned = true
			break
		}
	}
	err := m.setHadirLocked(ref, scanned)
	if err == model.ErrNotFound {
		// registrant already deleted, nothing to reconcile
		return nil
	}
	return err
}

func (m *Memory) setHadirLocked(ref model.Ref, hadir bool) error {
	switch ref.Kind {
	case model.JenisMahasiswa:
		s, ok := m.students[ref.ID]
		if !ok {
			return model.ErrNotFound
		}
		s.Hadir = hadir
		m.students[ref.ID] = s
	case model.JenisTamu:
		g, ok := m.guests[ref.ID]
		if !ok {
			return model.ErrNotFound
		}
		g.Hadir = hadir
		m.guests[ref.ID] = g
	default:
		return model.ErrNotFound
	}
	return nil
}
