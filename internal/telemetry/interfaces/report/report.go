package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	telemetry "iot-ingestor/internal/telemetry/domain"
)

// RangeReport is an offline operator report over a device's stored readings.
type RangeReport struct {
	DeviceID string
	From     time.Time
	To       time.Time
	Readings []telemetry.Reading
}

// BuildXLSX renders the report as a workbook with a summary sheet and one
// row per reading.
func BuildXLSX(r RangeReport) ([]byte, error) {
	if r.DeviceID == "" {
		return nil, errors.New("report: empty device id")
	}

	f := excelize.NewFile()
	summarySheet := "summary"
	readingsSheet := "readings"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Telemetry Report")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", r.DeviceID)
	_ = f.SetCellValue(summarySheet, "A4", "From")
	_ = f.SetCellValue(summarySheet, "B4", r.From.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "To")
	_ = f.SetCellValue(summarySheet, "B5", r.To.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Readings")
	_ = f.SetCellValue(summarySheet, "B6", len(r.Readings))

	_ = f.SetCellValue(readingsSheet, "A1", "Timestamp")
	_ = f.SetCellValue(readingsSheet, "B1", "Temperature")
	_ = f.SetCellValue(readingsSheet, "C1", "Humidity")
	_ = f.SetCellValue(readingsSheet, "D1", "Battery")
	for i, reading := range r.Readings {
		row := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", row), reading.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", row), reading.Temperature)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", row), reading.Humidity)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", row), reading.Battery)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the report as a compact PDF summary with a readings table.
func BuildPDF(r RangeReport) ([]byte, error) {
	if r.DeviceID == "" {
		return nil, errors.New("report: empty device id")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Telemetry Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", r.DeviceID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Range: %s .. %s", r.From.Format(time.RFC3339), r.To.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", len(r.Readings)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(55, 6, "Timestamp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Temperature", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Humidity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Battery", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, reading := range r.Readings {
		pdf.CellFormat(55, 6, reading.Timestamp.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", reading.Temperature), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", reading.Humidity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", reading.Battery), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
