package registrant

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"presensi/internal/listing"
	"presensi/internal/model"
	"presensi/internal/qr"
	"presensi/internal/store"
)

func newService(t *testing.T, pub Publisher) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	render := func(payload string, size int) ([]byte, error) { return []byte(payload), nil }
	return NewService(mem, qr.New(64, render), pub, 10, zerolog.Nop()), mem
}

func workbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatal(err)
		}
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestCreateStudentAndSearch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)

	for _, in := range []StudentInput{
		{Nama: "Budi", NIM: "123", Prodi: "S1 Teknik Informatika"},
		{Nama: "Sari", NIM: "124", Prodi: "D3 Manajemen Informatika"},
		{Nama: " Joko ", NIM: "125", Prodi: "S1 Teknik Informatika"},
	} {
		if _, err := svc.CreateStudent(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	page, err := svc.ListStudents(ctx, listing.Query{Search: "teknik"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2", page.Total)
	}
	if page.Items[0].Nama != "Joko" {
		t.Fatalf("want newest first with trimmed name, got %q", page.Items[0].Nama)
	}

	page, _ = svc.ListStudents(ctx, listing.Query{Search: "124"})
	if page.Total != 1 || page.Items[0].Nama != "Sari" {
		t.Fatalf("search by nim: %+v", page.Items)
	}
}

func TestCreateStudentRequiresFields(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.CreateStudent(context.Background(), StudentInput{Nama: "Budi", NIM: "123", Prodi: "  "})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "prodi") {
		t.Fatalf("error should name the json field: %v", err)
	}
}

func TestCreateStudentDuplicateNIM(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)
	if _, err := svc.CreateStudent(ctx, StudentInput{Nama: "Budi", NIM: "123", Prodi: "S1 TI"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateStudent(ctx, StudentInput{Nama: "Budi Lain", NIM: "123", Prodi: "S1 TI"})
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestUpdateAndDeleteGuest(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t, nil)

	g, err := svc.CreateGuest(ctx, GuestInput{Nama: "Pak Rektor", Tipe: "VVIP", Instansi: "STIKOM"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(g.Kode, "TM-") || len(g.Kode) != 11 {
		t.Fatalf("unexpected kode %q", g.Kode)
	}

	updated, err := svc.UpdateGuest(ctx, g.ID, GuestInput{Nama: "Pak Rektor", Tipe: "VIP", Instansi: "STIKOM PGRI"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Tipe != "VIP" || updated.Kode != g.Kode {
		t.Fatalf("update lost fields: %+v", updated)
	}

	if err := svc.DeleteGuest(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := mem.CountGuests(ctx, false); n != 0 {
		t.Fatalf("guest not deleted, count %d", n)
	}
	if err := svc.DeleteGuest(ctx, g.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestImportGuestsMissingInstansiInsertsNothing(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t, nil)

	wb := workbook(t, "tamu", [][]any{
		{"nama", "tipe", "instansi"},
		{"Ibu Ani", "Orang Tua", ""},
	})
	_, err := svc.ImportGuests(ctx, wb)
	if !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("err = %v, want ErrNoValidRows", err)
	}
	if n, _ := mem.CountGuests(ctx, false); n != 0 {
		t.Fatalf("inserted %d guests, want 0", n)
	}
}

func TestImportStudentsKeepsValidSubset(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t, nil)

	wb := workbook(t, "mahasiswa", [][]any{
		{"Nama", "NIM", "Prodi"},
		{"Budi", 123, "S1 TI"},
		{"Tanpa Prodi", 124, ""},
		{},
		{"Sari", "125", "D3 MI"},
	})
	res, err := svc.ImportStudents(ctx, wb)
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want 2 inserted 1 skipped", res)
	}
	if _, err := mem.StudentByNIM(ctx, "123"); err != nil {
		t.Fatalf("numeric nim cell not imported as text: %v", err)
	}
}

func TestImportRequiresNamedSheet(t *testing.T) {
	svc, _ := newService(t, nil)
	wb := workbook(t, "Sheet1", [][]any{{"nama", "nim", "prodi"}, {"Budi", "123", "S1 TI"}})
	if _, err := svc.ImportStudents(context.Background(), wb); !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("err = %v, want ErrSheetNotFound", err)
	}
}

func TestImportDuplicateFailsWholeBatch(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t, nil)
	wb := workbook(t, "mahasiswa", [][]any{
		{"nama", "nim", "prodi"},
		{"Budi", "123", "S1 TI"},
		{"Budi Lagi", "123", "S1 TI"},
	})
	if _, err := svc.ImportStudents(ctx, wb); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if n, _ := mem.CountStudents(ctx, false); n != 0 {
		t.Fatalf("partial import left %d rows", n)
	}
}

func TestQRPayloads(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)

	st, _ := svc.CreateStudent(ctx, StudentInput{Nama: "Budi", NIM: "123", Prodi: "S1 TI"})
	png, err := svc.StudentQR(ctx, st.ID)
	if err != nil || string(png) != "123" {
		t.Fatalf("student qr = %q, %v", png, err)
	}
	if _, err := svc.UpdateStudent(ctx, st.ID, StudentInput{Nama: "Budi", NIM: "999", Prodi: "S1 TI"}); err != nil {
		t.Fatal(err)
	}
	if png, _ = svc.StudentQR(ctx, st.ID); string(png) != "999" {
		t.Fatalf("qr not refreshed after nim change: %q", png)
	}

	g, _ := svc.CreateGuest(ctx, GuestInput{Nama: "Ibu Ani", Tipe: "Orang Tua", Instansi: "-"})
	if png, _ = svc.GuestQR(ctx, g.ID); string(png) != g.Kode {
		t.Fatalf("guest qr = %q, want kode %q", png, g.Kode)
	}

	if _, err := svc.StudentQR(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

type fakePublisher struct{ ids []string }

func (f *fakePublisher) UploadPNG(ctx context.Context, png []byte, publicID string) (string, error) {
	f.ids = append(f.ids, publicID)
	return "https://cdn.example/" + publicID + ".png", nil
}

func TestPublishQR(t *testing.T) {
	ctx := context.Background()

	svc, _ := newService(t, nil)
	st, _ := svc.CreateStudent(ctx, StudentInput{Nama: "Budi", NIM: "123", Prodi: "S1 TI"})
	if _, err := svc.PublishStudentQR(ctx, st.ID); !errors.Is(err, ErrStorageNotConfigured) {
		t.Fatalf("err = %v, want ErrStorageNotConfigured", err)
	}

	pub := &fakePublisher{}
	svc, _ = newService(t, pub)
	st, _ = svc.CreateStudent(ctx, StudentInput{Nama: "Budi", NIM: "123", Prodi: "S1 TI"})
	url, err := svc.PublishStudentQR(ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://cdn.example/mahasiswa-"+st.ID+".png" {
		t.Fatalf("url = %q", url)
	}
}
