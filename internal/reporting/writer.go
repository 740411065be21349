// File: internal/reporting/writer.go
package reporting

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Export formats understood by the writer.
const (
	FormatCSV = "csv"
	FormatTSV = "tsv"
)

// RowWriter writes one delimited record at a time.
type RowWriter interface {
	WriteHeader(cols []string) error
	WriteRow(fields []string) error
	Flush() error
}

// quotedWriter emits records with every field double quoted. encoding/csv
// only quotes fields that need it, and the report's consumers expect the
// QUOTE_ALL layout, so the quoting is done by hand here.
type quotedWriter struct {
	w     *bufio.Writer
	delim rune
}

// NewWriter returns a RowWriter that quotes every field and separates fields
// with delim.
func NewWriter(w io.Writer, delim rune) RowWriter {
	return &quotedWriter{w: bufio.NewWriter(w), delim: delim}
}

func (q *quotedWriter) WriteHeader(cols []string) error {
	return q.WriteRow(cols)
}

func (q *quotedWriter) WriteRow(fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if _, err := q.w.WriteRune(q.delim); err != nil {
				return err
			}
		}
		if err := q.writeQuoted(field); err != nil {
			return err
		}
	}
	return q.w.WriteByte('\n')
}

func (q *quotedWriter) writeQuoted(field string) error {
	if err := q.w.WriteByte('"'); err != nil {
		return err
	}
	if _, err := q.w.WriteString(strings.ReplaceAll(field, `"`, `""`)); err != nil {
		return err
	}
	return q.w.WriteByte('"')
}

func (q *quotedWriter) Flush() error {
	return q.w.Flush()
}

// Delim maps a validated export format to its field separator.
func Delim(format string) rune {
	if strings.EqualFold(format, FormatTSV) {
		return '\t'
	}
	return ','
}

// RawFileName is the intermediate report written while pages stream in.
func RawFileName(watch, format string) string {
	return fmt.Sprintf("violations_%s.%s", watch, strings.ToLower(format))
}

// EnrichedFileName is the final report with the Users column.
func EnrichedFileName(watch, format string) string {
	return fmt.Sprintf("violations_enriched_%s.%s", watch, strings.ToLower(format))
}
