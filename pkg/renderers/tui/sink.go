package tui

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-opform/pkg/form"
	"github.com/goliatone/go-opform/pkg/submission"
)

// Sink writes every accepted payload to w in the given format.
func Sink(w io.Writer, format OutputFormat) submission.Sink {
	return func(_ context.Context, sub submission.Submission) error {
		out, err := Serialize(sub.Data, format)
		if err != nil {
			return err
		}
		if _, err := w.Write(out); err != nil {
			return fmt.Errorf("tui: write submission: %w", err)
		}
		return nil
	}
}

// Serialize renders a payload. JSON is indented, the form format is a
// dotted-key query string and the pretty format is one key=value per line.
func Serialize(data form.Data, format OutputFormat) ([]byte, error) {
	values := map[string]any(data)
	switch format {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values) + "\n"), nil
	case OutputFormatPrettyText:
		return []byte(prettyPrint(values)), nil
	default:
		out, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("tui: encode submission: %w", err)
		}
		return append(out, '\n'), nil
	}
}

func flattenForm(values map[string]any) string {
	flattened := url.Values{}
	flatten("", values, flattened)
	return flattened.Encode()
}

func flatten(prefix string, value any, out url.Values) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			flatten(join(prefix, key), val, out)
		}
	case nil:
		out.Set(prefix, "")
	default:
		out.Set(prefix, fmt.Sprint(v))
	}
}

func prettyPrint(values map[string]any) string {
	var b strings.Builder
	writePretty(&b, "", values)
	return b.String()
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			writePretty(b, join(prefix, key), v[key])
		}
	case nil:
		fmt.Fprintf(b, "%s=\n", prefix)
	default:
		fmt.Fprintf(b, "%s=%v\n", prefix, v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
