package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"presensi/internal/listing"
	"presensi/internal/metrics"
	"presensi/internal/model"
	"presensi/internal/queue"
)

var (
	ErrIdentifierRequired = errors.New("identifier required")
	ErrInvalidJenis       = errors.New("jenis must be all, mahasiswa or tamu")
)

// Outcome is the terminal state of one check-in attempt.
type Outcome string

const (
	OutcomeCheckedIn      Outcome = "checked_in"
	OutcomeAlreadyScanned Outcome = "already_scanned"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeAmbiguous      Outcome = "ambiguous"
	OutcomeBusy           Outcome = "busy"
)

const (
	msgNotFound  = "Data tidak ditemukan."
	msgAmbiguous = "Nama tamu tidak unik, gunakan kode tamu."
	msgBusy      = "Data sedang diproses."
)

// Result is what the scanner shows. ResetAfterMS tells the client when to
// restart the scanner for the next attendee.
type Result struct {
	Outcome      Outcome         `json:"outcome"`
	Message      string          `json:"message"`
	Attendee     *model.Attendee `json:"attendee,omitempty"`
	ResetAfterMS int64           `json:"reset_after_ms"`
}

// Store is the persistence the check-in flow and the log viewer need.
type Store interface {
	StudentByNIM(ctx context.Context, nim string) (model.Student, error)
	GuestByKode(ctx context.Context, kode string) (model.Guest, error)
	GuestsByNama(ctx context.Context, nama string) ([]model.Guest, error)
	ClaimScan(ctx context.Context, e model.ScanLogEntry) (model.ScanLogEntry, error)
	ListScanLog(ctx context.Context) ([]model.ScanLogEntry, error)
	DeleteScanLog(ctx context.Context, id string) (model.ScanLogEntry, error)
	ReconcileHadir(ctx context.Context, ref model.Ref) error
}

// Service coordinates check-ins and the scan log.
type Service struct {
	store      Store
	guard      Guard
	queue      queue.Queue
	resetDelay time.Duration
	pageSize   int
	log        zerolog.Logger
	now        func() time.Time
}

// NewService creates a service. guard and q may be nil.
func NewService(store Store, guard Guard, q queue.Queue, resetDelay time.Duration, pageSize int, log zerolog.Logger) *Service {
	if resetDelay <= 0 {
		resetDelay = time.Second
	}
	if pageSize <= 0 {
		pageSize = listing.DefaultPageSize
	}
	return &Service{
		store:      store,
		guard:      guard,
		queue:      q,
		resetDelay: resetDelay,
		pageSize:   pageSize,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type target struct {
	ref      model.Ref
	nama     string
	attendee model.Attendee
}

func studentTarget(st model.Student) target {
	return target{
		ref:  st.Ref(),
		nama: st.Nama,
		attendee: model.Attendee{
			Jenis: model.JenisMahasiswa,
			Nama:  st.Nama,
			NIM:   st.NIM,
			Prodi: st.Prodi,
			Hadir: true,
		},
	}
}

func guestTarget(g model.Guest) target {
	return target{
		ref:  g.Ref(),
		nama: g.Nama,
		attendee: model.Attendee{
			Jenis:    model.JenisTamu,
			Nama:     g.Nama,
			Kode:     g.Kode,
			Tipe:     g.Tipe,
			Instansi: g.Instansi,
			Hadir:    true,
		},
	}
}

// CheckIn resolves identifier to a registrant (student nim, then guest
// kode, then guest nama) and records its attendance once.
func (s *Service) CheckIn(ctx context.Context, identifier string) (Result, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return Result{}, ErrIdentifierRequired
	}

	if s.guard != nil {
		ok, release, err := s.guard.Acquire(ctx, id)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("scan guard unavailable, continuing without lock")
		case !ok:
			return s.result(OutcomeBusy, msgBusy, nil), nil
		default:
			defer release()
		}
	}

	t, outcome, err := s.resolve(ctx, id)
	if err != nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("resolve %q: %w", id, err)
	}
	switch outcome {
	case OutcomeNotFound:
		s.log.Info().Str("identifier", id).Msg("check-in: not found")
		return s.result(outcome, msgNotFound, nil), nil
	case OutcomeAmbiguous:
		s.log.Info().Str("identifier", id).Msg("check-in: guest name not unique")
		return s.result(outcome, msgAmbiguous, nil), nil
	}

	entry, err := s.store.ClaimScan(ctx, model.ScanLogEntry{
		ID:          uuid.NewString(),
		Jenis:       t.ref.Kind,
		IDReferensi: t.ref.ID,
		Nama:        t.nama,
		WaktuScan:   s.now(),
	})
	switch {
	case errors.Is(err, model.ErrAlreadyScanned):
		s.log.Info().Str("ref", t.ref.String()).Msg("check-in: already scanned")
		return s.result(OutcomeAlreadyScanned, alreadyScannedMessage(t.ref.Kind), nil), nil
	case errors.Is(err, model.ErrNotFound):
		// registrant deleted between lookup and claim
		return s.result(OutcomeNotFound, msgNotFound, nil), nil
	case err != nil:
		metrics.CheckIns.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("ref", t.ref.String()).Msg("claim scan failed")
		return Result{}, fmt.Errorf("claim scan %s: %w", t.ref, err)
	}

	_ = s.publish(ctx, queue.TypeCheckIn, entry)
	s.log.Info().Str("ref", t.ref.String()).Str("nama", t.nama).Msg("check-in recorded")
	attendee := t.attendee
	return s.result(OutcomeCheckedIn, checkedInMessage(t.ref.Kind, t.nama), &attendee), nil
}

func (s *Service) resolve(ctx context.Context, id string) (target, Outcome, error) {
	st, err := s.store.StudentByNIM(ctx, id)
	if err == nil {
		return studentTarget(st), "", nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return target{}, "", err
	}

	g, err := s.store.GuestByKode(ctx, id)
	if err == nil {
		return guestTarget(g), "", nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return target{}, "", err
	}

	guests, err := s.store.GuestsByNama(ctx, id)
	if err != nil {
		return target{}, "", err
	}
	switch len(guests) {
	case 0:
		return target{}, OutcomeNotFound, nil
	case 1:
		return guestTarget(guests[0]), "", nil
	default:
		return target{}, OutcomeAmbiguous, nil
	}
}

func (s *Service) result(o Outcome, msg string, a *model.Attendee) Result {
	metrics.CheckIns.WithLabelValues(string(o)).Inc()
	return Result{
		Outcome:      o,
		Message:      msg,
		Attendee:     a,
		ResetAfterMS: s.resetDelay.Milliseconds(),
	}
}

func checkedInMessage(j model.Jenis, nama string) string {
	if j == model.JenisTamu {
		return fmt.Sprintf("Tamu %q dicatat hadir.", nama)
	}
	return fmt.Sprintf("Mahasiswa %q dicatat hadir.", nama)
}

func alreadyScannedMessage(j model.Jenis) string {
	if j == model.JenisTamu {
		return "Tamu ini sudah melakukan scan sebelumnya."
	}
	return "Mahasiswa ini sudah melakukan scan sebelumnya."
}

// publish logs and returns publish failures; callers decide whether the
// event was essential.
func (s *Service) publish(ctx context.Context, typ string, e model.ScanLogEntry) error {
	if s.queue == nil {
		return nil
	}
	body, err := json.Marshal(e)
	if err == nil {
		err = s.queue.Publish(ctx, queue.Message{Type: typ, Body: body})
	}
	if err != nil {
		s.log.Error().Err(err).Str("type", typ).Str("id", e.ID).Msg("queue publish failed")
	}
	return err
}

// ---------- Scan log ----------

// LogQuery selects scan log rows. Jenis is "all" (or empty), "mahasiswa"
// or "tamu"; Search matches nama.
type LogQuery struct {
	listing.Query
	Jenis string
}

func (s *Service) filteredLog(ctx context.Context, q LogQuery) (listing.Collection[model.ScanLogEntry], error) {
	jenis := strings.ToLower(strings.TrimSpace(q.Jenis))
	if jenis != "" && jenis != "all" && !model.Jenis(jenis).Valid() {
		return listing.Collection[model.ScanLogEntry]{}, ErrInvalidJenis
	}
	rows, err := s.store.ListScanLog(ctx)
	if err != nil {
		return listing.Collection[model.ScanLogEntry]{}, fmt.Errorf("list scan_log: %w", err)
	}
	c := listing.From(rows).
		Search(q.Search, func(e model.ScanLogEntry) []string { return []string{e.Nama} })
	if model.Jenis(jenis).Valid() {
		c = c.Where(func(e model.ScanLogEntry) bool { return e.Jenis == model.Jenis(jenis) })
	}
	return c, nil
}

// ListLog returns one page of the filtered scan log, newest first.
func (s *Service) ListLog(ctx context.Context, q LogQuery) (listing.Page[model.ScanLogEntry], error) {
	c, err := s.filteredLog(ctx, q)
	if err != nil {
		return listing.Page[model.ScanLogEntry]{}, err
	}
	size := q.PageSize
	if size <= 0 {
		size = s.pageSize
	}
	return c.Page(q.Page, size), nil
}

// DeleteLog removes one log row and asks the reconciler to reset the
// registrant's hadir flag.
func (s *Service) DeleteLog(ctx context.Context, id string) error {
	e, err := s.store.DeleteScanLog(ctx, id)
	if err != nil {
		return fmt.Errorf("delete scan_log %s: %w", id, err)
	}
	s.log.Info().Str("id", id).Str("ref", e.Ref().String()).Msg("scan log deleted")
	if s.queue != nil && s.publish(ctx, queue.TypeScanDeleted, e) == nil {
		return nil
	}
	if err := s.store.ReconcileHadir(ctx, e.Ref()); err != nil {
		return fmt.Errorf("reconcile %s: %w", e.Ref(), err)
	}
	return nil
}
