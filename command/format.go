package command

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kr/pretty"
	"github.com/mitchellh/cli"
	"github.com/olekukonko/tablewriter"
)

type Formatter interface {
	Output(ui cli.Ui, data interface{}) error
	Format(data interface{}) ([]byte, error)
}

var Formatters = map[string]Formatter{
	"json":   JsonFormatter{},
	"table":  TableFormatter{},
	"pretty": PrettyFormatter{},
}

func Format(ui cli.Ui) string {
	switch ui := ui.(type) {
	case *BillingUI:
		return ui.format
	}

	format := os.Getenv(EnvBillingFormat)
	if format == "" {
		format = "table"
	}

	return format
}

// OutputData outputs the given data in the requested format.
func OutputData(ui cli.Ui, format string, data interface{}) int {
	formatter, ok := Formatters[strings.ToLower(format)]
	if !ok {
		ui.Error(fmt.Sprintf("Invalid output format: %s", format))
		return 1
	}

	if err := formatter.Output(ui, data); err != nil {
		ui.Error(fmt.Sprintf("Could not output data: %s", err.Error()))
		return 1
	}
	return 0
}

// An output formatter for json output of an object
type JsonFormatter struct{}

func (j JsonFormatter) Format(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

func (j JsonFormatter) Output(ui cli.Ui, data interface{}) error {
	b, err := j.Format(data)
	if err != nil {
		return err
	}
	ui.Output(string(b))
	return nil
}

// PrettyFormatter prints Go syntax for the decoded value.
type PrettyFormatter struct{}

func (p PrettyFormatter) Format(data interface{}) ([]byte, error) {
	return []byte(fmt.Sprintf("%# v", pretty.Formatter(data))), nil
}

func (p PrettyFormatter) Output(ui cli.Ui, data interface{}) error {
	b, err := p.Format(data)
	if err != nil {
		return err
	}
	ui.Output(string(b))
	return nil
}

// An output formatter for table output of an object
type TableFormatter struct{}

func (t TableFormatter) Format(data interface{}) ([]byte, error) {
	var b strings.Builder
	if err := t.render(&b, data); err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(b.String(), "\n")), nil
}

func (t TableFormatter) Output(ui cli.Ui, data interface{}) error {
	b, err := t.Format(data)
	if err != nil {
		return err
	}
	if len(b) > 0 {
		ui.Output(string(b))
	}
	return nil
}

func (t TableFormatter) render(b *strings.Builder, data interface{}) error {
	switch v := data.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		// A page of a collection renders its results, followed by the count.
		if results, ok := v["results"].([]interface{}); ok {
			if err := t.render(b, results); err != nil {
				return err
			}
			if count, ok := v["count"]; ok {
				fmt.Fprintf(b, "\nCount: %s\n", cellValue(count))
			}
			if next, ok := v["next"].(string); ok && next != "" {
				fmt.Fprintf(b, "Next: %s\n", next)
			}
			return nil
		}
		return t.renderKeyValue(b, v)
	case []interface{}:
		return t.renderList(b, v)
	default:
		b.WriteString(cellValue(v))
		b.WriteString("\n")
		return nil
	}
}

func (t TableFormatter) renderKeyValue(b *strings.Builder, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, cellValue(m[k])})
	}

	table := newTable(b)
	table.SetHeader([]string{"Key", "Value"})
	table.AppendBulk(rows)
	table.Render()
	return nil
}

func (t TableFormatter) renderList(b *strings.Builder, list []interface{}) error {
	if len(list) == 0 {
		b.WriteString("No results\n")
		return nil
	}

	// Lists of objects become one row per object, columns being the union of
	// their keys.
	seen := make(map[string]struct{})
	var columns []string
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			columns = nil
			break
		}
		for k := range m {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
	}

	if columns == nil {
		for _, item := range list {
			b.WriteString(cellValue(item))
			b.WriteString("\n")
		}
		return nil
	}
	sort.Strings(columns)

	rows := make([][]string, 0, len(list))
	for _, item := range list {
		m := item.(map[string]interface{})
		row := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := m[c]; ok {
				row[i] = cellValue(v)
			}
		}
		rows = append(rows, row)
	}

	table := newTable(b)
	table.SetHeader(columns)
	table.AppendBulk(rows)
	table.Render()
	return nil
}

func newTable(b *strings.Builder) *tablewriter.Table {
	table := tablewriter.NewWriter(b)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorders(tablewriter.Border{
		Left:   false,
		Right:  false,
		Top:    false,
		Bottom: false,
	})
	return table
}

func cellValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "n/a"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool, float64, int:
		return fmt.Sprint(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
