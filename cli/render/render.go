// Package render provides centralized output rendering for the rpbridge CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --output always overrides the default; invalid formats are errors
//
// Table output flattens nested structs into dotted keys (launch.name).
// Outcome and status values are colored unless --no-color is set; json and
// yaml output are never colored.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/rpbridge/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // caller picks the default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the --output and --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}

	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     c.App.Writer,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Format returns the selected output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI runs the TUI for the given view type.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		return r.renderSliceTable(v)
	}
	return r.renderStructTable(data)
}

func (r *Renderer) renderSliceTable(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headers := fieldNames(indirect(v.Index(0)))
	fmt.Fprintln(w, strings.ToUpper(strings.Join(headers, "\t")))

	for i := 0; i < v.Len(); i++ {
		var row []string
		for _, kv := range flatten("", indirect(v.Index(i))) {
			row = append(row, kv[1])
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	return nil
}

func (r *Renderer) renderStructTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Struct, reflect.Map:
		for _, kv := range flatten("", v) {
			fmt.Fprintf(w, "%s:\t%s\n", kv[0], r.colorize(kv[0], kv[1]))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}

	return nil
}

// colorize styles outcome and status values. The value is the last column,
// so escape codes do not disturb alignment.
func (r *Renderer) colorize(key, value string) string {
	if r.noColor || value == "" {
		return value
	}
	switch key {
	case "outcome", "status":
		return tui.OutcomeStyle(value).Render(value)
	}
	return value
}

// flatten lists key/value pairs of a struct or map. Nested structs are
// expanded under a dotted prefix.
func flatten(prefix string, v reflect.Value) [][2]string {
	var out [][2]string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := prefix + fieldName(f)
			fv := indirect(v.Field(i))
			if fv.Kind() == reflect.Struct && !isLeaf(fv) {
				out = append(out, flatten(name+".", fv)...)
				continue
			}
			out = append(out, [2]string{name, formatValue(v.Field(i))})
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			out = append(out, [2]string{prefix + fmt.Sprintf("%v", iter.Key().Interface()), formatValue(iter.Value())})
		}
	default:
		out = append(out, [2]string{strings.TrimSuffix(prefix, "."), formatValue(v)})
	}
	return out
}

func fieldNames(v reflect.Value) []string {
	var names []string
	for _, kv := range flatten("", v) {
		names = append(names, kv[0])
	}
	return names
}

// fieldName prefers the json tag, then the yaml tag.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		if tag := f.Tag.Get(key); tag != "" {
			name, _, _ := strings.Cut(tag, ",")
			if name != "" && name != "-" {
				return name
			}
		}
	}
	return strings.ToLower(f.Name)
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// isLeaf reports whether a struct prints as a single value.
func isLeaf(v reflect.Value) bool {
	if !v.CanInterface() {
		return true
	}
	_, ok := v.Interface().(fmt.Stringer)
	return ok
}

func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}

	if v.CanInterface() {
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// isTTY returns true if the file is a terminal.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
