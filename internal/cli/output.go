package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type format string

const (
	formatYAML format = "yaml"
	formatJSON format = "json"
	formatText format = "text"
)

func parseFormat(s string) (format, error) {
	switch f := format(s); f {
	case formatYAML, formatJSON, formatText:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want yaml, json or text)", s)
}

// table is implemented by results that have a text rendering.
type table interface {
	header() []string
	rows() [][]string
}

func (a *app) render(v any) error {
	f, err := parseFormat(a.v.GetString("output"))
	if err != nil {
		return err
	}
	return render(a.out, f, v)
}

func render(w io.Writer, f format, v any) error {
	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatText:
		if t, ok := v.(table); ok {
			return writeTable(w, t)
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeTable(w io.Writer, t table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeRow(tw, t.header())
	for _, r := range t.rows() {
		writeRow(tw, r)
	}
	return tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, c := range cols {
		if i > 0 {
			_, _ = io.WriteString(w, "\t")
		}
		_, _ = io.WriteString(w, c)
	}
	_, _ = io.WriteString(w, "\n")
}
