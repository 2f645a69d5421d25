// Package output renders reports to a stream.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/aluiziolira/go-scrape-groceries/models"
)

// ReportWriter renders a report.
type ReportWriter interface {
	Write(report *models.Report) error
}

// NewWriter returns the writer for format ("json" or "csv").
func NewWriter(format string, w io.Writer) (ReportWriter, error) {
	switch format {
	case "json":
		return NewJSONWriter(w), nil
	case "csv":
		return NewCSVWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// JSONWriter writes the report as one indented JSON document.
type JSONWriter struct {
	encoder *json.Encoder
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return &JSONWriter{encoder: encoder}
}

// Write encodes report.
func (jw *JSONWriter) Write(report *models.Report) error {
	if report.Results == nil {
		report = &models.Report{Results: []*models.Product{}, Total: report.Total}
	}
	if err := jw.encoder.Encode(report); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

// CSVWriter writes one row per product followed by a total row.
type CSVWriter struct {
	writer *csv.Writer
}

// NewCSVWriter initialises the CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: csv.NewWriter(w)}
}

// Write emits the header, every product and the total.
func (cw *CSVWriter) Write(report *models.Report) error {
	header := []string{"title", "size", "unit_price", "description"}
	if err := cw.writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, product := range report.Results {
		record := []string{
			product.Title,
			product.Size,
			formatPrice(product.UnitPrice),
			product.Description,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	if err := cw.writer.Write([]string{"total", "", formatPrice(report.Total), ""}); err != nil {
		return fmt.Errorf("write csv total: %w", err)
	}

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
