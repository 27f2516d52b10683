package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"hydro-dashboard/internal/analytics/domain/series"
	sensors "hydro-dashboard/internal/sensors/domain"
)

// Formats supported by Build.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Build renders s in format.
func Build(format string, s series.Series, spec sensors.ParameterSpec, generated time.Time) ([]byte, error) {
	switch format {
	case FormatCSV:
		return BuildSeriesCSV(s, spec)
	case FormatXLSX:
		return BuildSeriesXLSX(s, spec, generated)
	case FormatPDF:
		return BuildSeriesPDF(s, spec, generated)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

func valueHeader(spec sensors.ParameterSpec) string {
	if spec.Unit == "" {
		return spec.Name
	}
	return fmt.Sprintf("%s (%s)", spec.Name, spec.Unit)
}

// BuildSeriesCSV renders one row per point.
func BuildSeriesCSV(s series.Series, spec sensors.ParameterSpec) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"label", "timestamp", "parameter", valueHeader(spec), "samples"})
	for _, p := range s.Points {
		_ = writer.Write([]string{
			p.Label,
			p.Timestamp.UTC().Format(time.RFC3339),
			string(s.Parameter),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
			strconv.Itoa(p.Count),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSeriesXLSX renders a summary sheet and a points sheet.
func BuildSeriesXLSX(s series.Series, spec sensors.ParameterSpec, generated time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	pointsSheet := "points"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(pointsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Hydroponics Series Export")
	_ = f.SetCellValue(summarySheet, "A3", "Parameter")
	_ = f.SetCellValue(summarySheet, "B3", spec.Name)
	_ = f.SetCellValue(summarySheet, "A4", "Granularity")
	_ = f.SetCellValue(summarySheet, "B4", s.Granularity)
	_ = f.SetCellValue(summarySheet, "A5", "Optimal Range")
	_ = f.SetCellValue(summarySheet, "B5", fmt.Sprintf("%s - %s %s", formatBound(spec.Min), formatBound(spec.Max), spec.Unit))
	_ = f.SetCellValue(summarySheet, "A6", "Points")
	_ = f.SetCellValue(summarySheet, "B6", len(s.Points))
	_ = f.SetCellValue(summarySheet, "A7", "Generated")
	_ = f.SetCellValue(summarySheet, "B7", generated.UTC().Format(time.RFC3339))

	_ = f.SetCellValue(pointsSheet, "A1", "Label")
	_ = f.SetCellValue(pointsSheet, "B1", "Timestamp")
	_ = f.SetCellValue(pointsSheet, "C1", valueHeader(spec))
	_ = f.SetCellValue(pointsSheet, "D1", "Samples")
	for i, p := range s.Points {
		row := i + 2
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("A%d", row), p.Label)
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("B%d", row), p.Timestamp.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("C%d", row), p.Value)
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("D%d", row), p.Count)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSeriesPDF renders a header block and a points table.
func BuildSeriesPDF(s series.Series, spec sensors.ParameterSpec, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("%s History", spec.Name))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Granularity: %s", s.Granularity))
	pdf.Ln(5)
	// The core fonts are cp1252; the degree sign needs translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.Cell(0, 6, tr(fmt.Sprintf("Optimal range: %s - %s %s", formatBound(spec.Min), formatBound(spec.Max), spec.Unit)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(80, 6, "Label", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, tr(valueHeader(spec)), "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Samples", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, p := range s.Points {
		pdf.CellFormat(80, 6, p.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", p.Value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, strconv.Itoa(p.Count), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
