package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xuri/excelize/v2"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func revenueToRows(report *domain.RevenueReport) [][]any {
	rows := make([][]any, 0, len(report.Buckets)+2)
	rows = append(rows, []any{"bucket", "revenue"})
	for _, b := range report.Buckets {
		rows = append(rows, []any{b.Key, b.Revenue})
	}
	rows = append(rows, []any{"total", report.Total})
	return rows
}

func rankingToRows(ranking *domain.RankingResult) [][]any {
	rows := make([][]any, 0, len(ranking.Items)+1)
	rows = append(rows, []any{"rank", "product", "total_revenue", "total_quantity", "store_count", "average_price"})
	for i, item := range ranking.Items {
		rows = append(rows, []any{i + 1, item.Product, item.TotalRevenue, item.TotalQuantity, item.StoreCount, item.AveragePrice})
	}
	return rows
}

func formatCell(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', 2, 64)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func writeCSV(w http.ResponseWriter, r *http.Request, filename string, rows [][]any) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	out := csv.NewWriter(w)
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := out.Write(record); err != nil {
			return
		}
	}
	out.Flush()
}

func writeXLSX(w http.ResponseWriter, r *http.Request, filename string, sheet string, rows [][]any) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		writeError(w, r, apperror.NewInternal(err))
		return
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			writeError(w, r, apperror.NewInternal(err))
			return
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, headerStyle)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		writeError(w, r, apperror.NewInternal(err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
