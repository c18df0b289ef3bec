// Package export writes patching results as tabular data and computes a
// reproducibility hash for a run.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// CSVDialect specifies the CSV format variant.
type CSVDialect string

const (
	// DialectStandard is RFC 4180 CSV.
	DialectStandard CSVDialect = "standard"

	// DialectExcel prefixes a UTF-8 byte order mark and uses CRLF line endings.
	DialectExcel CSVDialect = "excel"

	// DialectTSV uses tab separators.
	DialectTSV CSVDialect = "tsv"
)

const utf8BOM = "\ufeff"

// ParseDialect validates a dialect name. The empty string means standard.
func ParseDialect(s string) (CSVDialect, error) {
	switch d := CSVDialect(s); d {
	case "":
		return DialectStandard, nil
	case DialectStandard, DialectExcel, DialectTSV:
		return d, nil
	default:
		return "", perrors.ConfigInvalid("session.csv_dialect", "must be one of standard, excel, tsv").
			WithContext("value", s)
	}
}

// CSVConfig specifies options for CSV export.
type CSVConfig struct {
	Dialect CSVDialect

	// IncludeHeader writes column headers as the first row.
	IncludeHeader bool

	// Precision is the number of decimals for norms and durations.
	Precision int

	// NAString represents missing values.
	NAString string

	// IncludeGeneratedText adds the full decoded text column.
	IncludeGeneratedText bool
}

// DefaultCSVConfig returns standard CSV with a header, 6 decimals and "NA".
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Dialect:       DialectStandard,
		IncludeHeader: true,
		Precision:     6,
		NAString:      "NA",
	}
}

// CSVRow is one result flattened for tabular output.
type CSVRow struct {
	SessionID      string
	Experiment     string
	Entity         string
	ExtractLayer   int
	InjectLayer    int
	PatchApplied   bool
	PatchPosition  int
	SourceToken    string
	SourceReprNorm float64
	NormBefore     float64
	NormAfter      float64
	Bucket         string
	TemplateType   string
	TemplateIndex  *int
	NewTokens      string
	GeneratedText  string
	DurationMS     float64
	Error          string
}

// RowFromResult flattens r. bucket may be empty when the result was not
// classified.
func RowFromResult(sessionID, experiment, entity, bucket string, r *patchscope.Result) *CSVRow {
	row := &CSVRow{
		SessionID:      sessionID,
		Experiment:     experiment,
		Entity:         entity,
		ExtractLayer:   r.ExtractLayer,
		InjectLayer:    r.InjectLayer,
		PatchApplied:   r.PatchApplied,
		PatchPosition:  r.PatchPosition,
		SourceToken:    r.SourceToken,
		SourceReprNorm: r.SourceReprNorm,
		NormBefore:     r.NormBefore,
		NormAfter:      r.NormAfter,
		Bucket:         bucket,
		NewTokens:      r.NewTokens,
		GeneratedText:  r.GeneratedText,
		DurationMS:     r.DurationMS,
		Error:          r.Error,
	}
	if r.Template != nil {
		idx := r.Template.Index
		row.TemplateType = r.Template.Category
		row.TemplateIndex = &idx
	}
	return row
}

// CSVWriter writes result rows.
type CSVWriter struct {
	config      *CSVConfig
	out         io.Writer
	writer      *csv.Writer
	headerDone  bool
	rowsWritten int
}

// NewCSVWriter creates a CSVWriter. A nil config means DefaultCSVConfig().
func NewCSVWriter(w io.Writer, config *CSVConfig) *CSVWriter {
	if config == nil {
		config = DefaultCSVConfig()
	}
	cw := csv.NewWriter(w)
	switch config.Dialect {
	case DialectTSV:
		cw.Comma = '\t'
	case DialectExcel:
		cw.UseCRLF = true
	}
	return &CSVWriter{config: config, out: w, writer: cw}
}

// WriteHeader writes the header row once.
func (cw *CSVWriter) WriteHeader() error {
	if cw.headerDone {
		return nil
	}
	if cw.config.Dialect == DialectExcel {
		if _, err := io.WriteString(cw.out, utf8BOM); err != nil {
			return fmt.Errorf("failed to write byte order mark: %w", err)
		}
	}
	if err := cw.writer.Write(cw.buildHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	cw.headerDone = true
	return nil
}

// Write writes one row, preceded by the header on first use when enabled.
func (cw *CSVWriter) Write(r *CSVRow) error {
	if cw.config.IncludeHeader && !cw.headerDone {
		if err := cw.WriteHeader(); err != nil {
			return err
		}
	}
	if err := cw.writer.Write(cw.formatRow(r)); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	cw.rowsWritten++
	return nil
}

// WriteAll writes every row.
func (cw *CSVWriter) WriteAll(rows []*CSVRow) error {
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes buffered data.
func (cw *CSVWriter) Flush() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// RowsWritten returns the number of data rows written.
func (cw *CSVWriter) RowsWritten() int { return cw.rowsWritten }

func (cw *CSVWriter) buildHeaders() []string {
	headers := []string{
		"session_id",
		"experiment",
		"entity",
		"extract_layer",
		"inject_layer",
		"patch_applied",
		"patch_position",
		"source_token",
		"source_repr_norm",
		"norm_before",
		"norm_after",
		"bucket",
		"template_type",
		"template_index",
		"new_tokens",
	}
	if cw.config.IncludeGeneratedText {
		headers = append(headers, "generated_text")
	}
	return append(headers, "duration_ms", "error")
}

func (cw *CSVWriter) formatRow(r *CSVRow) []string {
	na := cw.config.NAString
	if r == nil {
		row := make([]string, len(cw.buildHeaders()))
		for i := range row {
			row[i] = na
		}
		return row
	}

	templateIndex := na
	if r.TemplateIndex != nil {
		templateIndex = strconv.Itoa(*r.TemplateIndex)
	}
	row := []string{
		orNA(r.SessionID, na),
		orNA(r.Experiment, na),
		orNA(r.Entity, na),
		strconv.Itoa(r.ExtractLayer),
		strconv.Itoa(r.InjectLayer),
		formatBool(r.PatchApplied),
		strconv.Itoa(r.PatchPosition),
		orNA(r.SourceToken, na),
		cw.formatFloat(r.SourceReprNorm),
		cw.formatFloat(r.NormBefore),
		cw.formatFloat(r.NormAfter),
		orNA(r.Bucket, na),
		orNA(r.TemplateType, na),
		templateIndex,
		orNA(r.NewTokens, na),
	}
	if cw.config.IncludeGeneratedText {
		row = append(row, orNA(r.GeneratedText, na))
	}
	return append(row, cw.formatFloat(r.DurationMS), orNA(r.Error, na))
}

func orNA(s, na string) string {
	if s == "" {
		return na
	}
	return s
}

func (cw *CSVWriter) formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', cw.config.Precision, 64)
}

// formatBool uses TRUE/FALSE for R and pandas.
func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// ExportResultsToCSV writes rows and flushes.
func ExportResultsToCSV(w io.Writer, rows []*CSVRow, config *CSVConfig) error {
	writer := NewCSVWriter(w, config)
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Flush()
}
