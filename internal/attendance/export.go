package attendance

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"presensi/internal/metrics"
)

const (
	ExportFilename = "Daftar_Scan_Log.xlsx"
	exportSheet    = "Daftar Scan"
)

var exportHeader = []any{"id", "jenis", "id_referensi", "nama", "waktu_scan"}

// Export writes the filtered (unpaged) scan log to w as an xlsx workbook
// and returns the number of data rows written.
func (s *Service) Export(ctx context.Context, q LogQuery, w io.Writer) (int, error) {
	c, err := s.filteredLog(ctx, q)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return 0, fmt.Errorf("export header: %w", err)
	}
	for i, e := range c.Items() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		row := []any{e.ID, string(e.Jenis), e.IDReferensi, e.Nama, e.WaktuScan.Format(time.RFC3339)}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return 0, fmt.Errorf("export row %d: %w", i+1, err)
		}
	}
	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("export write: %w", err)
	}

	metrics.Exports.Inc()
	s.log.Info().Int("rows", c.Len()).Str("jenis", q.Jenis).Str("q", q.Search).Msg("scan log exported")
	return c.Len(), nil
}
