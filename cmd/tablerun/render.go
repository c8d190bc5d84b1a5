package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/bagofwords1/bagofwords-sub001/pipeline"
	"github.com/bagofwords1/bagofwords-sub001/profile"
)

// report is the structured output of a run.
type report struct {
	Done   pipeline.DonePayload   `json:"done"`
	Widget *profile.WidgetPayload `json:"widget"`
}

func newReport(done pipeline.DonePayload, widget *profile.WidgetPayload) report {
	done.Table = profile.CleanTable(done.Table)
	return report{Done: done, Widget: widget}
}

// renderEvent writes one progress or stdout event as a single line.
func renderEvent(w io.Writer, e pipeline.Event) {
	switch e.Type {
	case pipeline.EventProgress:
		p, ok := e.Payload.(pipeline.ProgressPayload)
		if !ok {
			return
		}
		line := fmt.Sprintf("[attempt %d] %s", p.Attempt+1, p.Stage)
		if p.Valid != nil {
			line += fmt.Sprintf(" valid=%t", *p.Valid)
		}
		if p.Error != "" {
			line += ": " + firstLine(p.Error)
		}
		_, _ = fmt.Fprintln(w, line)
	case pipeline.EventStdout:
		msg, _ := e.Payload.(string)
		for _, l := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
			_, _ = fmt.Fprintln(w, "| "+l)
		}
	}
}

// renderWidget writes the table rows followed by the column profile.
func renderWidget(w io.Writer, widget profile.WidgetPayload) error {
	if len(widget.Columns) == 0 {
		_, _ = fmt.Fprintln(w, "(0 columns)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(widget.Columns))
	for i, col := range widget.Columns {
		header[i] = col.HeaderName
	}
	t.AppendHeader(header)
	for _, r := range widget.Rows {
		row := make(table.Row, len(widget.Columns))
		for i, col := range widget.Columns {
			row[i] = formatValue(r[col.Field])
		}
		t.AppendRow(row)
	}
	t.Render()

	if shown := len(widget.Rows); shown < widget.Info.TotalRows {
		_, _ = fmt.Fprintf(w, "(%d of %d rows)\n", shown, widget.Info.TotalRows)
	} else {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", shown)
	}

	p := table.NewWriter()
	p.SetOutputMirror(w)
	p.SetStyle(table.StyleLight)
	p.AppendHeader(table.Row{"column", "dtype", "non-null", "null", "unique"})
	for _, col := range widget.Columns {
		info := widget.Info.ColumnInfo[col.Field]
		p.AppendRow(table.Row{col.Field, info.Dtype, info.NonNullCount, info.NullCount, info.UniqueCount})
	}
	p.Render()
	return nil
}

// renderErrors writes the error history of a failed run.
func renderErrors(w io.Writer, errs []pipeline.ErrorRecord) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "error"})
	for i, e := range errs {
		t.AppendRow(table.Row{i + 1, firstLine(e.Message)})
	}
	t.Render()
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderYAML goes through JSON so that field names and custom encodings
// match the JSON output.
func renderYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
