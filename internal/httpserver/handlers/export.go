package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/store"
)

const (
	// MaxExportRows caps a single spreadsheet export.
	MaxExportRows = 5000

	exportSheet = "Tenders"
	xlsxMIME    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeader = []any{
	"Purchase number", "Title", "Customer", "Tax ID", "Region", "Max price",
	"Published", "Application deadline", "Saved", "Found by", "Link",
}

// ExportTenders streams the tenders matching the list filter as an XLSX
// workbook. Paging parameters are ignored; at most MaxExportRows rows are
// written.
func ExportTenders(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := d.Now()
		f, err := parseTenderFilter(r.URL.Query(), now)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		tenders, err := collectForExport(r.Context(), d.Store, f)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		w.Header().Set("Content-Type", xlsxMIME)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="tenders-%s.xlsx"`, now.Format("20060102-150405")))
		if err := writeWorkbook(w, tenders); err != nil {
			// headers are gone, nothing left to report to the client
			d.Logger.Error("failed to write export", logger.Error(err))
			return
		}

		d.Logger.Info("tenders exported", logger.Int("rows", len(tenders)))
	}
}

// collectForExport walks the filtered pages until MaxExportRows or the end.
func collectForExport(ctx context.Context, s store.TenderStore, f domain.TenderFilter) ([]*domain.Tender, error) {
	f.Page = 1
	f.PageSize = domain.MaxPageSize

	var out []*domain.Tender
	for len(out) < MaxExportRows {
		page, err := s.ListTenders(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Tenders...)
		if f.Page >= page.TotalPages || len(page.Tenders) == 0 {
			break
		}
		f.Page++
	}
	if len(out) > MaxExportRows {
		out = out[:MaxExportRows]
	}
	return out, nil
}

func writeWorkbook(w io.Writer, tenders []*domain.Tender) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}

	for i, t := range tenders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := exportRow(t)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "B", "B", 60); err != nil {
		return err
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func exportRow(t *domain.Tender) []any {
	price := any("")
	if t.MaxPrice != nil {
		price, _ = t.MaxPrice.Float64()
	}
	return []any{
		t.PurchaseNumber,
		t.Title,
		str(t.CustomerName),
		str(t.CustomerINN),
		str(t.Region),
		price,
		date(t.PublishDate),
		date(t.Deadline),
		t.SavedAt.UTC().Format(time.RFC3339),
		str(t.QueryKeyword),
		str(t.SourceURL),
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
