// Package output provides tab-delimited and text formatters for gene
// hierarchies and their comparisons.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// TabWriter writes rows of tab-separated values.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer with the given columns.
func NewTabWriter(w io.Writer, columns ...string) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
}

// Columns returns the column names.
func (tw *TabWriter) Columns() []string { return tw.columns }

// WriteHeader writes the header line, prefixed with '#'.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString("#" + strings.Join(tw.columns, "\t") + "\n")
	return err
}

// WriteRow writes one row. Empty values are written as "-".
func (tw *TabWriter) WriteRow(values ...string) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = orDash(v)
	}
	_, err := tw.w.WriteString(strings.Join(row, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func itoa(n int) string { return strconv.Itoa(n) }
