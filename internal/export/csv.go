package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteCSV writes records as comma separated lines. The header is taken from
// the first record; each value is its JSON encoding, so strings are quoted
// and absent optionals read "null". Nothing is written for an empty slice.
func WriteCSV(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	bw := bufio.NewWriter(w)
	header := records[0].Keys()
	if _, err := bw.WriteString(strings.Join(header, ",") + "\n"); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	for _, rec := range records {
		byKey := make(map[string]string, len(rec))
		for _, f := range rec {
			byKey[f.Key] = string(f.Value)
		}
		values := make([]string, len(header))
		for i, k := range header {
			values[i] = byKey[k]
		}
		if _, err := bw.WriteString(strings.Join(values, ",") + "\n"); err != nil {
			return fmt.Errorf("export: write csv: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}

// ReadCSV parses text produced by WriteCSV or a template. Lines are split on
// newlines and fields on commas, then surrounding double quotes are stripped.
// Quoted commas and embedded newlines are not supported: a value containing
// a comma is split across columns.
func ReadCSV(r io.Reader) ([]map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("export: read csv: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}
	header := splitLine(lines[0])
	out := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := splitLine(line)
		rec := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(values) {
				rec[key] = values[i]
			} else {
				rec[key] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func splitLine(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= 2 && strings.HasPrefix(p, `"`) && strings.HasSuffix(p, `"`) {
			p = p[1 : len(p)-1]
		}
		parts[i] = p
	}
	return parts
}
