package chart

import (
	"context"
	"errors"
	"testing"
	"time"

	"presensi/internal/model"
	"presensi/internal/store"
)

func TestSummary(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.CreateStudents(ctx, []model.Student{{ID: "s1", NIM: "1"}, {ID: "s2", NIM: "2"}, {ID: "s3", NIM: "3"}})
	_ = mem.CreateGuests(ctx, []model.Guest{{ID: "g1", Kode: "TM-1"}})
	_, _ = mem.ClaimScan(ctx, model.ScanLogEntry{ID: "l1", Jenis: model.JenisMahasiswa, IDReferensi: "s2", WaktuScan: time.Now()})

	bars, err := NewAggregator(mem).Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Bar{{"Mahasiswa", 3, 1}, {"Tamu", 1, 0}}
	for i := range want {
		if bars[i] != want[i] {
			t.Fatalf("bars = %+v, want %+v", bars, want)
		}
	}
}

type failing struct{}

func (failing) CountStudents(ctx context.Context, attendedOnly bool) (int, error) { return 4, nil }

func (failing) CountGuests(ctx context.Context, attendedOnly bool) (int, error) {
	return 0, errors.New("db down")
}

func TestSummaryPropagatesErrors(t *testing.T) {
	if _, err := NewAggregator(failing{}).Summary(context.Background()); err == nil {
		t.Fatal("want error")
	}
}
