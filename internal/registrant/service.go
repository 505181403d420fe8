package registrant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"presensi/internal/listing"
	"presensi/internal/model"
	"presensi/internal/qr"
)

var (
	// ErrInvalid wraps required-field failures.
	ErrInvalid = errors.New("invalid input")
	// ErrStorageNotConfigured is returned by Publish* without a publisher.
	ErrStorageNotConfigured = errors.New("image storage not configured")
)

// Store is the persistence the registration manager needs.
type Store interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	Student(ctx context.Context, id string) (model.Student, error)
	CreateStudents(ctx context.Context, students []model.Student) error
	UpdateStudent(ctx context.Context, s model.Student) error
	DeleteStudent(ctx context.Context, id string) error

	ListGuests(ctx context.Context) ([]model.Guest, error)
	Guest(ctx context.Context, id string) (model.Guest, error)
	CreateGuests(ctx context.Context, guests []model.Guest) error
	UpdateGuest(ctx context.Context, g model.Guest) error
	DeleteGuest(ctx context.Context, id string) error
}

// Publisher uploads a rendered QR image and returns its public URL.
type Publisher interface {
	UploadPNG(ctx context.Context, png []byte, publicID string) (string, error)
}

// StudentInput holds the editable student fields.
type StudentInput struct {
	Nama  string `json:"nama" validate:"required"`
	NIM   string `json:"nim" validate:"required"`
	Prodi string `json:"prodi" validate:"required"`
}

func (in StudentInput) normalize() StudentInput {
	return StudentInput{
		Nama:  strings.TrimSpace(in.Nama),
		NIM:   strings.TrimSpace(in.NIM),
		Prodi: strings.TrimSpace(in.Prodi),
	}
}

// GuestInput holds the editable guest fields.
type GuestInput struct {
	Nama     string `json:"nama" validate:"required"`
	Tipe     string `json:"tipe" validate:"required"`
	Instansi string `json:"instansi" validate:"required"`
}

func (in GuestInput) normalize() GuestInput {
	return GuestInput{
		Nama:     strings.TrimSpace(in.Nama),
		Tipe:     strings.TrimSpace(in.Tipe),
		Instansi: strings.TrimSpace(in.Instansi),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		names := make([]string, len(fields))
		for i, fe := range fields {
			names[i] = fe.Field()
		}
		return fmt.Errorf("%w: %s wajib diisi", ErrInvalid, strings.Join(names, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

// Service manages the student and guest collections.
type Service struct {
	store     Store
	qr        *qr.Renderer
	publisher Publisher
	pageSize  int
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a registration manager. publisher may be nil.
func NewService(store Store, renderer *qr.Renderer, publisher Publisher, pageSize int, log zerolog.Logger) *Service {
	if renderer == nil {
		renderer = qr.New(0, nil)
	}
	if pageSize <= 0 {
		pageSize = listing.DefaultPageSize
	}
	return &Service{
		store:     store,
		qr:        renderer,
		publisher: publisher,
		pageSize:  pageSize,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ---------- Students ----------

func (s *Service) newStudent(in StudentInput) model.Student {
	return model.Student{
		ID:        uuid.NewString(),
		Nama:      in.Nama,
		NIM:       in.NIM,
		Prodi:     in.Prodi,
		CreatedAt: s.now(),
	}
}

// CreateStudent validates and inserts one student.
func (s *Service) CreateStudent(ctx context.Context, in StudentInput) (model.Student, error) {
	in = in.normalize()
	if err := check(in); err != nil {
		return model.Student{}, err
	}
	st := s.newStudent(in)
	if err := s.store.CreateStudents(ctx, []model.Student{st}); err != nil {
		return model.Student{}, fmt.Errorf("create mahasiswa: %w", err)
	}
	s.log.Info().Str("id", st.ID).Str("nim", st.NIM).Msg("mahasiswa created")
	return st, nil
}

// UpdateStudent replaces nama, nim and prodi of one student.
func (s *Service) UpdateStudent(ctx context.Context, id string, in StudentInput) (model.Student, error) {
	in = in.normalize()
	if err := check(in); err != nil {
		return model.Student{}, err
	}
	if err := s.store.UpdateStudent(ctx, model.Student{ID: id, Nama: in.Nama, NIM: in.NIM, Prodi: in.Prodi}); err != nil {
		return model.Student{}, fmt.Errorf("update mahasiswa %s: %w", id, err)
	}
	return s.store.Student(ctx, id)
}

// DeleteStudent removes one student and its cached QR image.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	if err := s.store.DeleteStudent(ctx, id); err != nil {
		return fmt.Errorf("delete mahasiswa %s: %w", id, err)
	}
	s.qr.Invalidate(model.Ref{Kind: model.JenisMahasiswa, ID: id})
	s.log.Info().Str("id", id).Msg("mahasiswa deleted")
	return nil
}

// ListStudents searches nama, nim and prodi and returns one page.
func (s *Service) ListStudents(ctx context.Context, q listing.Query) (listing.Page[model.Student], error) {
	rows, err := s.store.ListStudents(ctx)
	if err != nil {
		return listing.Page[model.Student]{}, fmt.Errorf("list mahasiswa: %w", err)
	}
	return listing.From(rows).
		Search(q.Search, func(st model.Student) []string { return []string{st.Nama, st.NIM, st.Prodi} }).
		Page(q.Page, s.size(q)), nil
}

// ImportStudents reads sheet "mahasiswa" and inserts its valid rows.
func (s *Service) ImportStudents(ctx context.Context, r io.Reader) (ImportResult, error) {
	records, err := readSheet(r, string(model.JenisMahasiswa))
	if err != nil {
		return ImportResult{}, err
	}
	var valid []model.Student
	for _, rec := range records {
		in := StudentInput{Nama: rec["nama"], NIM: rec["nim"], Prodi: rec["prodi"]}.normalize()
		if check(in) != nil {
			continue
		}
		valid = append(valid, s.newStudent(in))
	}
	res := ImportResult{Inserted: len(valid), Skipped: len(records) - len(valid)}
	if err := s.finishImport(model.JenisMahasiswa, res, func() error {
		return s.store.CreateStudents(ctx, valid)
	}); err != nil {
		return ImportResult{Skipped: len(records)}, err
	}
	return res, nil
}

// StudentQR renders the student's QR code; the payload is the nim.
func (s *Service) StudentQR(ctx context.Context, id string) ([]byte, error) {
	st, err := s.store.Student(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.qr.PNG(st.Ref(), st.NIM)
}

// PublishStudentQR uploads the student's QR code and returns its URL.
func (s *Service) PublishStudentQR(ctx context.Context, id string) (string, error) {
	png, err := s.StudentQR(ctx, id)
	if err != nil {
		return "", err
	}
	return s.publish(ctx, png, "mahasiswa-"+id)
}

// ---------- Guests ----------

func (s *Service) newGuest(in GuestInput) model.Guest {
	return model.Guest{
		ID:        uuid.NewString(),
		Kode:      NewGuestCode(),
		Nama:      in.Nama,
		Tipe:      in.Tipe,
		Instansi:  in.Instansi,
		CreatedAt: s.now(),
	}
}

// NewGuestCode returns a fresh guest code such as "TM-1A2B3C4D".
func NewGuestCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TM-" + strings.ToUpper(id[:8])
}

// CreateGuest validates and inserts one guest with a new kode.
func (s *Service) CreateGuest(ctx context.Context, in GuestInput) (model.Guest, error) {
	in = in.normalize()
	if err := check(in); err != nil {
		return model.Guest{}, err
	}
	g := s.newGuest(in)
	if err := s.store.CreateGuests(ctx, []model.Guest{g}); err != nil {
		return model.Guest{}, fmt.Errorf("create tamu: %w", err)
	}
	s.log.Info().Str("id", g.ID).Str("kode", g.Kode).Msg("tamu created")
	return g, nil
}

// UpdateGuest replaces nama, tipe and instansi of one guest.
func (s *Service) UpdateGuest(ctx context.Context, id string, in GuestInput) (model.Guest, error) {
	in = in.normalize()
	if err := check(in); err != nil {
		return model.Guest{}, err
	}
	if err := s.store.UpdateGuest(ctx, model.Guest{ID: id, Nama: in.Nama, Tipe: in.Tipe, Instansi: in.Instansi}); err != nil {
		return model.Guest{}, fmt.Errorf("update tamu %s: %w", id, err)
	}
	return s.store.Guest(ctx, id)
}

// DeleteGuest removes one guest and its cached QR image.
func (s *Service) DeleteGuest(ctx context.Context, id string) error {
	if err := s.store.DeleteGuest(ctx, id); err != nil {
		return fmt.Errorf("delete tamu %s: %w", id, err)
	}
	s.qr.Invalidate(model.Ref{Kind: model.JenisTamu, ID: id})
	s.log.Info().Str("id", id).Msg("tamu deleted")
	return nil
}

// ListGuests searches nama, tipe, instansi and kode and returns one page.
func (s *Service) ListGuests(ctx context.Context, q listing.Query) (listing.Page[model.Guest], error) {
	rows, err := s.store.ListGuests(ctx)
	if err != nil {
		return listing.Page[model.Guest]{}, fmt.Errorf("list tamu: %w", err)
	}
	return listing.From(rows).
		Search(q.Search, func(g model.Guest) []string { return []string{g.Nama, g.Tipe, g.Instansi, g.Kode} }).
		Page(q.Page, s.size(q)), nil
}

// ImportGuests reads sheet "tamu" and inserts its valid rows.
func (s *Service) ImportGuests(ctx context.Context, r io.Reader) (ImportResult, error) {
	records, err := readSheet(r, string(model.JenisTamu))
	if err != nil {
		return ImportResult{}, err
	}
	var valid []model.Guest
	for _, rec := range records {
		in := GuestInput{Nama: rec["nama"], Tipe: rec["tipe"], Instansi: rec["instansi"]}.normalize()
		if check(in) != nil {
			continue
		}
		valid = append(valid, s.newGuest(in))
	}
	res := ImportResult{Inserted: len(valid), Skipped: len(records) - len(valid)}
	if err := s.finishImport(model.JenisTamu, res, func() error {
		return s.store.CreateGuests(ctx, valid)
	}); err != nil {
		return ImportResult{Skipped: len(records)}, err
	}
	return res, nil
}

// GuestQR renders the guest's QR code; the payload is the kode.
func (s *Service) GuestQR(ctx context.Context, id string) ([]byte, error) {
	g, err := s.store.Guest(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.qr.PNG(g.Ref(), g.Kode)
}

// PublishGuestQR uploads the guest's QR code and returns its URL.
func (s *Service) PublishGuestQR(ctx context.Context, id string) (string, error) {
	png, err := s.GuestQR(ctx, id)
	if err != nil {
		return "", err
	}
	return s.publish(ctx, png, "tamu-"+id)
}

// ---------- helpers ----------

func (s *Service) size(q listing.Query) int {
	if q.PageSize > 0 {
		return q.PageSize
	}
	return s.pageSize
}

func (s *Service) publish(ctx context.Context, png []byte, publicID string) (string, error) {
	if s.publisher == nil {
		return "", ErrStorageNotConfigured
	}
	url, err := s.publisher.UploadPNG(ctx, png, publicID)
	if err != nil {
		return "", fmt.Errorf("publish qr %s: %w", publicID, err)
	}
	return url, nil
}
