package model

import (
	"errors"
	"time"
)

// Jenis discriminates the two registrant tables.
type Jenis string

const (
	JenisMahasiswa Jenis = "mahasiswa"
	JenisTamu      Jenis = "tamu"
)

// Valid reports whether j names a registrant table.
func (j Jenis) Valid() bool {
	return j == JenisMahasiswa || j == JenisTamu
}

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("duplicate")
	ErrAlreadyScanned = errors.New("already scanned")
)

// Ref points at one registrant row.
type Ref struct {
	Kind Jenis
	ID   string
}

func (r Ref) String() string { return string(r.Kind) + "/" + r.ID }

// Student is a graduating student (mahasiswa).
type Student struct {
	ID        string    `json:"id"`
	Nama      string    `json:"nama"`
	NIM       string    `json:"nim"`
	Prodi     string    `json:"prodi"`
	Hadir     bool      `json:"hadir"`
	CreatedAt time.Time `json:"created_at"`
}

// Ref returns the tagged reference of the student.
func (s Student) Ref() Ref { return Ref{Kind: JenisMahasiswa, ID: s.ID} }

// Guest is an invited guest (tamu). Kode is the unique code printed in the
// guest's QR invitation.
type Guest struct {
	ID        string    `json:"id"`
	Kode      string    `json:"kode"`
	Nama      string    `json:"nama"`
	Tipe      string    `json:"tipe"`
	Instansi  string    `json:"instansi"`
	Hadir     bool      `json:"hadir"`
	CreatedAt time.Time `json:"created_at"`
}

// Ref returns the tagged reference of the guest.
func (g Guest) Ref() Ref { return Ref{Kind: JenisTamu, ID: g.ID} }

// ScanLogEntry is one attendance event. At most one exists per
// (Jenis, IDReferensi).
type ScanLogEntry struct {
	ID          string    `json:"id"`
	Jenis       Jenis     `json:"jenis"`
	IDReferensi string    `json:"id_referensi"`
	Nama        string    `json:"nama"`
	WaktuScan   time.Time `json:"waktu_scan"`
}

// Ref returns the registrant the entry belongs to.
func (e ScanLogEntry) Ref() Ref { return Ref{Kind: e.Jenis, ID: e.IDReferensi} }

// Attendee is the snapshot shown after a successful check-in.
type Attendee struct {
	Jenis    Jenis  `json:"jenis"`
	Nama     string `json:"nama"`
	NIM      string `json:"nim,omitempty"`
	Prodi    string `json:"prodi,omitempty"`
	Kode     string `json:"kode,omitempty"`
	Tipe     string `json:"tipe,omitempty"`
	Instansi string `json:"instansi,omitempty"`
	Hadir    bool   `json:"hadir"`
}
