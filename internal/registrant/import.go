package registrant

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"presensi/internal/metrics"
	"presensi/internal/model"
)

var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrNoValidRows   = errors.New("no valid rows")
)

// ImportResult is the aggregate outcome of one workbook import.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// readSheet returns the data rows of sheet keyed by the lowercased header
// cells. Blank rows are dropped.
func readSheet(r io.Reader, sheet string) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrInvalid, err)
	}
	defer f.Close()

	found := false
	for _, name := range f.GetSheetList() {
		if name == sheet {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var out []map[string]string
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		blank := true
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			v := strings.TrimSpace(cell)
			if v != "" {
				blank = false
			}
			rec[header[i]] = v
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Service) finishImport(jenis model.Jenis, res ImportResult, insert func() error) error {
	metrics.ImportedRows.WithLabelValues(string(jenis), "skipped").Add(float64(res.Skipped))
	if res.Inserted == 0 {
		s.log.Warn().Str("jenis", string(jenis)).Int("skipped", res.Skipped).Msg("import has no valid rows")
		return ErrNoValidRows
	}
	if err := insert(); err != nil {
		s.log.Error().Err(err).Str("jenis", string(jenis)).Msg("import failed")
		return fmt.Errorf("import %s: %w", jenis, err)
	}
	metrics.ImportedRows.WithLabelValues(string(jenis), "inserted").Add(float64(res.Inserted))
	s.log.Info().Str("jenis", string(jenis)).Int("inserted", res.Inserted).Int("skipped", res.Skipped).Msg("import done")
	return nil
}
