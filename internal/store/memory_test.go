package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"presensi/internal/model"
)

func TestMemoryClaimScanOncePerRegistrant(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	st := model.Student{ID: "s1", Nama: "Budi", NIM: "123", Prodi: "S1 TI", CreatedAt: time.Now()}
	if err := m.CreateStudents(ctx, []model.Student{st}); err != nil {
		t.Fatal(err)
	}

	entry := model.ScanLogEntry{ID: "l1", Jenis: model.JenisMahasiswa, IDReferensi: "s1", Nama: "Budi", WaktuScan: time.Now()}
	if _, err := m.ClaimScan(ctx, entry); err != nil {
		t.Fatal(err)
	}
	entry.ID = "l2"
	if _, err := m.ClaimScan(ctx, entry); !errors.Is(err, model.ErrAlreadyScanned) {
		t.Fatalf("second claim err = %v", err)
	}

	got, _ := m.Student(ctx, "s1")
	if !got.Hadir {
		t.Fatal("hadir not set by claim")
	}
	logs, _ := m.ListScanLog(ctx)
	if len(logs) != 1 {
		t.Fatalf("log rows = %d, want 1", len(logs))
	}
}

func TestMemoryClaimScanUnknownRegistrant(t *testing.T) {
	m := NewMemory()
	_, err := m.ClaimScan(context.Background(), model.ScanLogEntry{ID: "l1", Jenis: model.JenisTamu, IDReferensi: "nope"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if logs, _ := m.ListScanLog(context.Background()); len(logs) != 0 {
		t.Fatal("failed claim left a log row")
	}
}

func TestMemoryReconcileAfterDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g := model.Guest{ID: "g1", Kode: "TM-00000001", Nama: "Ibu Ani", Tipe: "VIP", Instansi: "-"}
	_ = m.CreateGuests(ctx, []model.Guest{g})
	_, _ = m.ClaimScan(ctx, model.ScanLogEntry{ID: "l1", Jenis: model.JenisTamu, IDReferensi: "g1", Nama: "Ibu Ani", WaktuScan: time.Now()})

	deleted, err := m.DeleteScanLog(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ReconcileHadir(ctx, deleted.Ref()); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Guest(ctx, "g1")
	if got.Hadir {
		t.Fatal("hadir still set after reconcile")
	}

	if _, err := m.DeleteScanLog(ctx, "l1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if err := m.ReconcileHadir(ctx, model.Ref{Kind: model.JenisTamu, ID: "gone"}); err != nil {
		t.Fatalf("reconcile of deleted registrant: %v", err)
	}
}

func TestMemoryOrderingNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	at := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	_ = m.CreateStudents(ctx, []model.Student{
		{ID: "a", NIM: "1", CreatedAt: at},
		{ID: "b", NIM: "2", CreatedAt: at.Add(time.Minute)},
		{ID: "c", NIM: "3", CreatedAt: at},
	})
	rows, _ := m.ListStudents(ctx)
	want := []string{"b", "c", "a"}
	for i, id := range want {
		if rows[i].ID != id {
			t.Fatalf("order = %v, want %v", ids(rows), want)
		}
	}
}

func TestMemoryUniqueNIM(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.CreateStudents(ctx, []model.Student{{ID: "a", NIM: "1"}, {ID: "b", NIM: "2"}})

	if err := m.UpdateStudent(ctx, model.Student{ID: "b", NIM: "1"}); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("update err = %v", err)
	}
	if err := m.CreateStudents(ctx, []model.Student{{ID: "c", NIM: "3"}, {ID: "d", NIM: "3"}}); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("batch err = %v", err)
	}
	if n, _ := m.CountStudents(ctx, false); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func ids(rows []model.Student) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
