// Package export renders readings and alerts as downloadable documents.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alerts "iot-climate-monitor/internal/alerts/domain"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

const readingsSheet = "Readings"

var readingHeader = []string{"id", "device_id", "device_code", "temperature", "humidity", "light", "recorded_at"}

func readingRow(r telemetry.Reading) []string {
	light := ""
	if r.Light != nil {
		light = strconv.FormatFloat(*r.Light, 'f', -1, 64)
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		strconv.FormatInt(r.DeviceID, 10),
		r.DeviceCode,
		strconv.FormatFloat(r.Temperature, 'f', -1, 64),
		strconv.FormatFloat(r.Humidity, 'f', -1, 64),
		light,
		r.RecordedAt.UTC().Format(time.RFC3339),
	}
}

// ReadingsCSV writes a header row followed by one row per reading.
func ReadingsCSV(w io.Writer, readings []telemetry.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(readingHeader); err != nil {
		return err
	}
	for _, r := range readings {
		if err := cw.Write(readingRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadingsXLSX writes a workbook with a single Readings sheet.
func ReadingsXLSX(w io.Writer, readings []telemetry.Reading) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return err
	}
	header := make([]any, len(readingHeader))
	for i, h := range readingHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(readingsSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range readings {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.ID, r.DeviceID, r.DeviceCode, r.Temperature, r.Humidity, nil, r.RecordedAt.UTC().Format(time.RFC3339)}
		if r.Light != nil {
			row[5] = *r.Light
		}
		if err := f.SetSheetRow(readingsSheet, cell, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// AlertsPDF writes an A4 table of alerts.
func AlertsPDF(w io.Writer, list []alerts.Alert, generatedAt time.Time) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Alert report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Alert report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s, %d alerts", generatedAt.UTC().Format(time.RFC3339), len(list)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	widths := []float64{15, 50, 50, 30, 25, 25, 25, 50}
	header := []string{"ID", "Room", "Location", "Metric", "Threshold", "Value", "Status", "Created"}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, a := range list {
		cells := []string{
			strconv.FormatInt(a.ID, 10),
			a.RoomName,
			a.Location,
			string(a.Metric),
			strconv.FormatFloat(a.Threshold, 'f', 2, 64),
			strconv.FormatFloat(a.Value, 'f', 2, 64),
			string(a.Status),
			a.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}
