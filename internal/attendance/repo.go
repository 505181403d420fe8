package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"presensi/internal/model"
	"presensi/internal/store"
)

// Repository persists scan log data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// StudentByNIM returns the student whose nim equals the identifier.
func (r *Repository) StudentByNIM(ctx context.Context, nim string) (model.Student, error) {
	var s model.Student
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nama, nim, prodi, hadir, created_at
		FROM mahasiswa WHERE nim = $1
	`, nim).Scan(&s.ID, &s.Nama, &s.NIM, &s.Prodi, &s.Hadir, &s.CreatedAt)
	return s, store.MapError(err)
}

// GuestByKode returns the guest with the given invitation code.
func (r *Repository) GuestByKode(ctx context.Context, kode string) (model.Guest, error) {
	var g model.Guest
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kode, nama, tipe, instansi, hadir, created_at
		FROM tamu WHERE kode = $1
	`, kode).Scan(&g.ID, &g.Kode, &g.Nama, &g.Tipe, &g.Instansi, &g.Hadir, &g.CreatedAt)
	return g, store.MapError(err)
}

// GuestsByNama returns every guest whose nama matches exactly.
func (r *Repository) GuestsByNama(ctx context.Context, nama string) ([]model.Guest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kode, nama, tipe, instansi, hadir, created_at
		FROM tamu WHERE nama = $1
		ORDER BY created_at DESC
	`, nama)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Guest
	for rows.Next() {
		var g model.Guest
		if err := rows.Scan(&g.ID, &g.Kode, &g.Nama, &g.Tipe, &g.Instansi, &g.Hadir, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ClaimScan inserts the log row and marks the registrant present in one
// transaction. A row already present for (jenis, id_referensi) yields
// model.ErrAlreadyScanned and nothing is written.
func (r *Repository) ClaimScan(ctx context.Context, e model.ScanLogEntry) (model.ScanLogEntry, error) {
	table, err := tableFor(e.Jenis)
	if err != nil {
		return model.ScanLogEntry{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ScanLogEntry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO scan_log (id, jenis, id_referensi, nama, waktu_scan)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jenis, id_referensi) DO NOTHING
		RETURNING waktu_scan
	`, e.ID, string(e.Jenis), e.IDReferensi, e.Nama, e.WaktuScan).Scan(&e.WaktuScan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScanLogEntry{}, model.ErrAlreadyScanned
	}
	if err != nil {
		return model.ScanLogEntry{}, fmt.Errorf("insert scan_log: %w", store.MapError(err))
	}

	res, err := tx.ExecContext(ctx, `UPDATE `+table+` SET hadir = TRUE WHERE id = $1`, e.IDReferensi)
	if err := affectedOne(res, err); err != nil {
		return model.ScanLogEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.ScanLogEntry{}, err
	}
	return e, nil
}

// ListScanLog returns all rows, most recent scan first.
func (r *Repository) ListScanLog(ctx context.Context) ([]model.ScanLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, jenis, id_referensi, nama, waktu_scan
		FROM scan_log
		ORDER BY waktu_scan DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScanLogEntry
	for rows.Next() {
		var e model.ScanLogEntry
		var jenis string
		if err := rows.Scan(&e.ID, &jenis, &e.IDReferensi, &e.Nama, &e.WaktuScan); err != nil {
			return nil, err
		}
		e.Jenis = model.Jenis(jenis)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteScanLog removes one row and returns it.
func (r *Repository) DeleteScanLog(ctx context.Context, id string) (model.ScanLogEntry, error) {
	var e model.ScanLogEntry
	var jenis string
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM scan_log WHERE id = $1
		RETURNING id, jenis, id_referensi, nama, waktu_scan
	`, id).Scan(&e.ID, &jenis, &e.IDReferensi, &e.Nama, &e.WaktuScan)
	if err != nil {
		return model.ScanLogEntry{}, store.MapError(err)
	}
	e.Jenis = model.Jenis(jenis)
	return e, nil
}

// ReconcileHadir sets the registrant's hadir flag to whether a scan_log row
// exists for it. A registrant that no longer exists is ignored.
func (r *Repository) ReconcileHadir(ctx context.Context, ref model.Ref) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE `+table+` SET hadir = EXISTS (
			SELECT 1 FROM scan_log WHERE jenis = $1 AND id_referensi = $2
		)
		WHERE id = $2
	`, string(ref.Kind), ref.ID)
	return err
}

func tableFor(j model.Jenis) (string, error) {
	switch j {
	case model.JenisMahasiswa:
		return "mahasiswa", nil
	case model.JenisTamu:
		return "tamu", nil
	}
	return "", fmt.Errorf("unknown jenis %q", j)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
