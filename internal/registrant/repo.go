package registrant

import (
	"context"
	"database/sql"
	"fmt"

	"presensi/internal/model"
	"presensi/internal/store"
)

// Repository persists students and guests in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, nama, nim, prodi, hadir, created_at`

func scanStudent(row interface{ Scan(...any) error }) (model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.Nama, &s.NIM, &s.Prodi, &s.Hadir, &s.CreatedAt)
	return s, err
}

// ListStudents returns all students, newest first.
func (r *Repository) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM mahasiswa ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Student returns one student by id.
func (r *Repository) Student(ctx context.Context, id string) (model.Student, error) {
	s, err := scanStudent(r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM mahasiswa WHERE id = $1`, id))
	return s, store.MapError(err)
}

// CreateStudents inserts rows in a single transaction.
func (r *Repository) CreateStudents(ctx context.Context, students []model.Student) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO mahasiswa (id, nama, nim, prodi, hadir, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, s := range students {
			if _, err := stmt.ExecContext(ctx, s.ID, s.Nama, s.NIM, s.Prodi, s.Hadir, s.CreatedAt); err != nil {
				return fmt.Errorf("insert mahasiswa %s: %w", s.NIM, store.MapError(err))
			}
		}
		return nil
	})
}

// UpdateStudent rewrites the editable fields of one student.
func (r *Repository) UpdateStudent(ctx context.Context, s model.Student) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mahasiswa SET nama = $2, nim = $3, prodi = $4
		WHERE id = $1
	`, s.ID, s.Nama, s.NIM, s.Prodi)
	return affectedOne(res, store.MapError(err))
}

// DeleteStudent removes one student.
func (r *Repository) DeleteStudent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mahasiswa WHERE id = $1`, id)
	return affectedOne(res, store.MapError(err))
}

// CountStudents counts all students, or only those marked present.
func (r *Repository) CountStudents(ctx context.Context, attendedOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM mahasiswa`
	if attendedOnly {
		q += ` WHERE hadir = TRUE`
	}
	var n int
	err := r.db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

const guestColumns = `id, kode, nama, tipe, instansi, hadir, created_at`

func scanGuest(row interface{ Scan(...any) error }) (model.Guest, error) {
	var g model.Guest
	err := row.Scan(&g.ID, &g.Kode, &g.Nama, &g.Tipe, &g.Instansi, &g.Hadir, &g.CreatedAt)
	return g, err
}

// ListGuests returns all guests, newest first.
func (r *Repository) ListGuests(ctx context.Context) ([]model.Guest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+guestColumns+` FROM tamu ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Guest returns one guest by id.
func (r *Repository) Guest(ctx context.Context, id string) (model.Guest, error) {
	g, err := scanGuest(r.db.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM tamu WHERE id = $1`, id))
	return g, store.MapError(err)
}

// CreateGuests inserts rows in a single transaction.
func (r *Repository) CreateGuests(ctx context.Context, guests []model.Guest) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tamu (id, kode, nama, tipe, instansi, hadir, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, g := range guests {
			if _, err := stmt.ExecContext(ctx, g.ID, g.Kode, g.Nama, g.Tipe, g.Instansi, g.Hadir, g.CreatedAt); err != nil {
				return fmt.Errorf("insert tamu %s: %w", g.Nama, store.MapError(err))
			}
		}
		return nil
	})
}

// UpdateGuest rewrites the editable fields of one guest. The kode is fixed
// at creation.
func (r *Repository) UpdateGuest(ctx context.Context, g model.Guest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tamu SET nama = $2, tipe = $3, instansi = $4
		WHERE id = $1
	`, g.ID, g.Nama, g.Tipe, g.Instansi)
	return affectedOne(res, store.MapError(err))
}

// DeleteGuest removes one guest.
func (r *Repository) DeleteGuest(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tamu WHERE id = $1`, id)
	return affectedOne(res, store.MapError(err))
}

// CountGuests counts all guests, or only those marked present.
func (r *Repository) CountGuests(ctx context.Context, attendedOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM tamu`
	if attendedOnly {
		q += ` WHERE hadir = TRUE`
	}
	var n int
	err := r.db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
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
