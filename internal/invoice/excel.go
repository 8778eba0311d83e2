// Package invoice renders billing invoices as spreadsheets.
package invoice

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/chillcar/service-booking/internal/application"
)

const sheet = "Invoice"

// ExcelRenderer lays an invoice out on a single xlsx sheet.
type ExcelRenderer struct {
	workshop string
}

// NewExcelRenderer creates an ExcelRenderer printing workshop as the issuer.
func NewExcelRenderer(workshop string) *ExcelRenderer {
	return &ExcelRenderer{workshop: workshop}
}

// Render implements application.InvoiceRenderer.
func (r *ExcelRenderer) Render(doc application.InvoiceDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name invoice sheet: %w", err)
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	f.SetCellValue(sheet, "A1", r.workshop)
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	f.SetCellValue(sheet, "A2", "INVOICE")

	header := [][2]any{
		{"Booking", doc.Booking.BookingNumber},
		{"Issued", doc.IssuedAt.Format("2006-01-02")},
		{"Customer", doc.Customer.Name},
		{"Email", doc.Customer.Email},
		{"Car", fmt.Sprintf("%s %s (%s)", doc.Car.Make, doc.Car.Model, doc.Car.PlateNumber)},
		{"Status", doc.Billing.Status},
	}
	row := 4
	for _, kv := range header {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), kv[0])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), kv[1])
		row++
	}

	row++
	for i, h := range []string{"Type", "Description", "Qty", "Unit price", "Amount"} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, row)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}
	row++
	for _, l := range doc.Quote.Lines {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), string(l.Kind))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), l.Description)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), l.Quantity)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), money(l.UnitPriceCents))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), money(l.TotalCents()))
		row++
	}

	row++
	totals := [][2]any{
		{"Total (" + doc.Billing.Currency + ")", money(doc.Billing.TotalCents)},
		{"Paid", money(doc.Billing.PaidCents)},
		{"Outstanding", money(doc.Billing.OutstandingCents)},
	}
	for _, kv := range totals {
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), kv[0])
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), kv[1])
		f.SetCellStyle(sheet, fmt.Sprintf("D%d", row), fmt.Sprintf("E%d", row), totalStyle)
		row++
	}

	if len(doc.Billing.Payments) > 0 {
		row++
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Payments")
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), totalStyle)
		row++
		for _, p := range doc.Billing.Payments {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), p.PaidAt.Format("2006-01-02"))
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), p.Method)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), p.Reference)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), money(p.AmountCents))
			row++
		}
	}

	for i, w := range []float64{14, 40, 8, 14, 14} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func money(cents int64) float64 {
	return float64(cents) / 100
}
