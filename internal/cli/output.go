package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"booklib/internal/tree"
)

// Output formats accepted by -o.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// render writes v in format. Text output is only defined for tree views.
func render(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		view, ok := v.(*tree.View)
		if !ok {
			return fmt.Errorf("text output is not available for %T", v)
		}
		writeView(w, view, 0)
		return nil
	}
}

// writeView prints view and its loaded children as an indented outline.
func writeView(w io.Writer, view *tree.View, level int) {
	indent := strings.Repeat("  ", level)
	switch view.Kind {
	case tree.KindBook.String():
		line := fmt.Sprintf("%s[%d] %s", indent, view.BookID, view.Name)
		if len(view.Authors) > 0 {
			line += " by " + strings.Join(view.Authors, ", ")
		}
		if view.Series != "" {
			line += fmt.Sprintf(" (%s #%g)", view.Series, view.SeriesIndex)
		}
		fmt.Fprintln(w, line)
	default:
		name := view.Name
		if name == "" {
			name = "/"
		}
		if len(view.Children) == 0 && view.ChildCount > 0 {
			fmt.Fprintf(w, "%s%s/ (%d)\n", indent, name, view.ChildCount)
		} else {
			fmt.Fprintf(w, "%s%s/\n", indent, name)
		}
	}
	for _, child := range view.Children {
		writeView(w, child, level+1)
	}
}
