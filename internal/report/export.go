package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"field-controller/internal/store"
)

// buildPDF renders a one-page PDF for a daily summary.
func buildPDF(field string, st store.DailyStats) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Daily Field Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Field: %s", field))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", st.Date.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", st.Count))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sensor errors: %d", st.Errors))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Rain cycles: %d", st.RainCycles))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Metric", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	rows := []struct {
		name          string
		min, avg, max float64
	}{
		{"Temperature (C)", st.TempMin, st.TempAvg, st.TempMax},
		{"Humidity (%)", 0, st.HumAvg, 0},
		{"Soil moisture (%)", st.SoilMin, st.SoilAvg, st.SoilMax},
	}
	for _, row := range rows {
		pdf.CellFormat(50, 6, row.name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.min), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.avg), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.max), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildXLSX renders the daily summary as a workbook.
func buildXLSX(field string, st store.DailyStats) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	metricsSheet := "metrics"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(metricsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Daily Field Report")
	_ = f.SetCellValue(summarySheet, "A3", "Field")
	_ = f.SetCellValue(summarySheet, "B3", field)
	_ = f.SetCellValue(summarySheet, "A4", "Date")
	_ = f.SetCellValue(summarySheet, "B4", st.Date.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A5", "Readings")
	_ = f.SetCellValue(summarySheet, "B5", st.Count)
	_ = f.SetCellValue(summarySheet, "A6", "Sensor errors")
	_ = f.SetCellValue(summarySheet, "B6", st.Errors)
	_ = f.SetCellValue(summarySheet, "A7", "Rain cycles")
	_ = f.SetCellValue(summarySheet, "B7", st.RainCycles)

	_ = f.SetCellValue(metricsSheet, "A1", "Metric")
	_ = f.SetCellValue(metricsSheet, "B1", "Min")
	_ = f.SetCellValue(metricsSheet, "C1", "Avg")
	_ = f.SetCellValue(metricsSheet, "D1", "Max")

	rows := []struct {
		name          string
		min, avg, max float64
	}{
		{"Temperature (C)", st.TempMin, st.TempAvg, st.TempMax},
		{"Humidity (%)", 0, st.HumAvg, 0},
		{"Soil moisture (%)", st.SoilMin, st.SoilAvg, st.SoilMax},
	}
	for i, row := range rows {
		n := i + 2
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("A%d", n), row.name)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("B%d", n), row.min)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("C%d", n), row.avg)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("D%d", n), row.max)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
