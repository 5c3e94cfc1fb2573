// Package output renders command results on stdout as an aligned table or as JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Format represents supported output formats
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"

	tabwriterPadding = 2
)

// Formatter writes results in the format selected with --output
type Formatter struct {
	writer io.Writer
	format Format
}

// NewFormatter creates a formatter writing to w. Unknown formats fall back to table;
// use IsValid to reject them first.
func NewFormatter(w io.Writer, format string) *Formatter {
	if !IsValid(format) {
		format = string(FormatTable)
	}
	return &Formatter{writer: w, format: Format(format)}
}

// IsValid reports whether format names a supported output format
func IsValid(format string) bool {
	switch Format(format) {
	case FormatTable, FormatJSON:
		return true
	}
	return false
}

// Table is a result with one column per header.
// In JSON each row becomes an object keyed by the lowercased header.
type Table struct {
	Headers []string
	Rows    [][]string
}

// PrintTable prints table in the configured format
func (f *Formatter) PrintTable(table Table) error {
	if f.format == FormatJSON {
		return f.printJSON(tableToMaps(table))
	}

	if len(table.Rows) == 0 {
		_, err := fmt.Fprintln(f.writer, "No data found")
		return err
	}

	w := tabwriter.NewWriter(f.writer, 0, 0, tabwriterPadding, ' ', 0)
	fmt.Fprintln(w, strings.Join(table.Headers, "\t"))
	for _, row := range table.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// PrintObject prints ordered key/value fields; JSON as one object, table as "key: value" lines
func (f *Formatter) PrintObject(fields [][2]string) error {
	if f.format == FormatJSON {
		item := make(map[string]string, len(fields))
		for _, kv := range fields {
			item[kv[0]] = kv[1]
		}
		return f.printJSON(item)
	}

	w := tabwriter.NewWriter(f.writer, 0, 0, tabwriterPadding, ' ', 0)
	for _, kv := range fields {
		fmt.Fprintf(w, "%s:\t%s\n", kv[0], kv[1])
	}
	return w.Flush()
}

func (f *Formatter) printJSON(data any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func jsonKey(header string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(header), " ", "_"))
}

// tableToMaps converts rows to objects; missing trailing cells are omitted
func tableToMaps(table Table) []map[string]string {
	result := make([]map[string]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		item := make(map[string]string, len(table.Headers))
		for i, header := range table.Headers {
			if i < len(row) {
				item[jsonKey(header)] = row[i]
			}
		}
		result = append(result, item)
	}
	return result
}
