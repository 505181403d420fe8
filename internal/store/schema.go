package store

import (
	"context"
	"fmt"
)

// schema mirrors the hosted tables. The (jenis, id_referensi) constraint on
// scan_log is what turns a second check-in into "already scanned".
const schema = `
CREATE TABLE IF NOT EXISTS mahasiswa (
	id          UUID PRIMARY KEY,
	nama        TEXT NOT NULL,
	nim         TEXT NOT NULL UNIQUE,
	prodi       TEXT NOT NULL,
	hadir       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tamu (
	id          UUID PRIMARY KEY,
	kode        TEXT NOT NULL UNIQUE,
	nama        TEXT NOT NULL,
	tipe        TEXT NOT NULL,
	instansi    TEXT NOT NULL,
	hadir       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tamu_nama ON tamu(nama);

CREATE TABLE IF NOT EXISTS scan_log (
	id            UUID PRIMARY KEY,
	jenis         TEXT NOT NULL CHECK (jenis IN ('mahasiswa', 'tamu')),
	id_referensi  UUID NOT NULL,
	nama          TEXT NOT NULL,
	waktu_scan    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (jenis, id_referensi)
);

CREATE INDEX IF NOT EXISTS idx_scan_log_waktu ON scan_log(waktu_scan DESC);
`

// EnsureSchema creates the tables when they do not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
