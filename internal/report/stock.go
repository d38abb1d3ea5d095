// Package report renders ledger snapshots as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/erazemk/fieldstock/internal/model"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names.
const (
	StockSheet       = "Stock"
	AssignmentsSheet = "Assignments"
)

var (
	stockHeader      = []any{"ID", "Item", "Total", "Reserved", "Available", "Assigned"}
	assignmentHeader = []any{"Worker", "Item", "Assigned", "Updated"}
)

// StockSnapshot is the data behind a stock workbook.
type StockSnapshot struct {
	Items       []model.Item
	Assigned    map[int64]int // item ID -> units held by workers
	Assignments []model.Assignment
	GeneratedAt time.Time
}

// WriteStock writes the snapshot as an XLSX workbook with one sheet for
// central stock and one for worker holdings.
func WriteStock(w io.Writer, snap StockSnapshot) error {
	f, err := StockWorkbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// StockWorkbook builds the workbook for snap.
func StockWorkbook(snap StockSnapshot) (*excelize.File, error) {
	f := excelize.NewFile()

	// NewFile starts with Sheet1; rename it rather than leaving it empty.
	if err := f.SetSheetName("Sheet1", StockSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming stock sheet: %w", err)
	}
	if _, err := f.NewSheet(AssignmentsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("adding assignments sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	rows := make([][]any, 0, len(snap.Items))
	for _, it := range snap.Items {
		rows = append(rows, []any{
			it.ID, it.Name, it.TotalQuantity, it.ReservedQuantity, it.Available(), snap.Assigned[it.ID],
		})
	}
	if err := writeTable(f, StockSheet, stockHeader, rows, bold); err != nil {
		f.Close()
		return nil, err
	}

	rows = rows[:0]
	for _, a := range snap.Assignments {
		rows = append(rows, []any{a.WorkerName, a.ItemName, a.AssignedQuantity, a.UpdatedAt.UTC().Format(time.DateTime)})
	}
	if err := writeTable(f, AssignmentsSheet, assignmentHeader, rows, bold); err != nil {
		f.Close()
		return nil, err
	}

	if !snap.GeneratedAt.IsZero() {
		if err := f.SetDocProps(&excelize.DocProperties{
			Creator: "fieldstock",
			Title:   "Stock snapshot",
			Created: snap.GeneratedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("setting workbook properties: %w", err)
		}
	}

	return f, nil
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing %s header: %w", sheet, err)
	}
	return nil
}
