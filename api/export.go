package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/qmedic/stock-ledger/ledger"
)

const (
	historySheet = "History"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HistoryExportHeader is the column order of the history workbook.
var HistoryExportHeader = []string{
	"ID",
	"Date",
	"Item ID",
	"Item Name",
	"Category",
	"Action",
	"Quantity",
	"Case ID",
	"User",
}

var historyColumnWidths = []float64{8, 24, 12, 30, 14, 14, 10, 12, 20}

// ExportHistory streams the filtered history as an .xlsx attachment.
// GET /api/history/export
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	records, err := h.Store.History(r.Context(), filter)
	if err != nil {
		h.writeInternal(w, r, "Failed to fetch history data.", err)
		return
	}

	data, err := GenerateHistoryWorkbook(records)
	if err != nil {
		h.writeInternal(w, r, "Failed to build history export.", err)
		return
	}

	name := fmt.Sprintf("inventory-history-%s.xlsx", h.Now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GenerateHistoryWorkbook renders records into a single-sheet workbook with
// a frozen, styled header row. Records are written in the order given.
func GenerateHistoryWorkbook(records []ledger.ActionRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range HistoryExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(historySheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(historySheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(historySheet, name, name, historyColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, rec := range records {
		row := i + 2
		dto := toHistoryDTO(rec)
		values := []any{
			dto.ID,
			rec.Timestamp.UTC().Format(time.DateTime),
			dto.ItemID,
			dto.ItemName,
			dto.Category,
			dto.Action,
			dto.Quantity,
			dto.CaseID,
			dto.User,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(historySheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if err := f.SetPanes(historySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
