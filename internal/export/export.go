// Package export renders extracted text as downloadable files.
package export

import (
	"fmt"
	"sort"
	"strings"

	apperrors "go-jp-digitizer/internal/errors"

	"github.com/xuri/excelize/v2"
)

const (
	FormatTXT  = "txt"
	FormatXLSX = "xlsx"

	// SheetName is the worksheet holding the exported text
	SheetName = "OCR Result"
)

// Exporter turns text into the bytes of one file format
type Exporter interface {
	Format() string
	ContentType() string
	Filename() string
	Export(text string) ([]byte, error)
}

type TextExporter struct{}

func (TextExporter) Format() string      { return FormatTXT }
func (TextExporter) ContentType() string { return "text/plain; charset=utf-8" }
func (TextExporter) Filename() string    { return "export.txt" }

func (TextExporter) Export(text string) ([]byte, error) {
	return []byte(text), nil
}

// SpreadsheetExporter writes the text into cell A1 of a single worksheet
type SpreadsheetExporter struct{}

func (SpreadsheetExporter) Format() string { return FormatXLSX }
func (SpreadsheetExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (SpreadsheetExporter) Filename() string { return "export.xlsx" }

func (SpreadsheetExporter) Export(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetCellValue(SheetName, "A1", text); err != nil {
		return nil, fmt.Errorf("write cell: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "A1", style); err != nil {
		return nil, fmt.Errorf("apply style: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", 100); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Registry looks exporters up by format name
type Registry struct {
	exporters map[string]Exporter
}

func NewRegistry(exporters ...Exporter) *Registry {
	r := &Registry{exporters: make(map[string]Exporter, len(exporters))}
	for _, e := range exporters {
		r.exporters[e.Format()] = e
	}
	return r
}

// DefaultRegistry has the txt and xlsx exporters
func DefaultRegistry() *Registry {
	return NewRegistry(TextExporter{}, SpreadsheetExporter{})
}

func (r *Registry) Get(format string) (Exporter, error) {
	e, ok := r.exporters[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unsupported export format %q", format), nil)
	}
	return e, nil
}

func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.exporters))
	for f := range r.exporters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
