package view

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/meta"
)

const headerDelim = "---"

// Reserved metadata keys.
const (
	KeyLayout    = "layout"
	KeyFilters   = "filters"
	KeyName      = "__name"
	KeyNamespace = "__namespace"
)

// parseView splits raw into its header metadata and body.
//
// A header is only recognized when the very first line is "---"; the block
// runs until the next "---" line and holds a YAML mapping. Without an opening
// delimiter the whole file is body. An opened header that never closes is a
// ParseError.
func parseView(file string, raw []byte) (*meta.Map, string, error) {
	m := meta.New()
	src := string(raw)
	first, rest, ok := strings.Cut(src, "\n")
	if !ok || !isDelim(first) {
		return m, src, nil
	}

	var header strings.Builder
	for rest != "" {
		line, tail, _ := strings.Cut(rest, "\n")
		if isDelim(line) {
			if err := decodeHeader(file, header.String(), m); err != nil {
				return nil, "", err
			}
			return m, tail, nil
		}
		header.WriteString(line)
		header.WriteByte('\n')
		rest = tail
	}
	return nil, "", &fault.ParseError{File: file, Msg: "Wrong YAML header for view"}
}

func isDelim(line string) bool {
	return strings.TrimRight(line, "\r\n") == headerDelim
}

func decodeHeader(file, src string, m *meta.Map) error {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return &fault.ParseError{File: file, Msg: "invalid YAML header: " + err.Error()}
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil
	}
	if root.Kind != yaml.MappingNode {
		return &fault.ParseError{File: file, Msg: "YAML header is not a mapping"}
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		var v any
		if err := root.Content[i+1].Decode(&v); err != nil {
			return &fault.ParseError{File: file, Msg: "invalid value for " + root.Content[i].Value + ": " + err.Error()}
		}
		if s, ok := v.(string); ok {
			v = unescape(s)
		}
		m.Set(root.Content[i].Value, v)
	}
	return nil
}

// unescape handles literal string values: a leading underscore marks the
// value as literal text, and one layer of matching quotes is removed.
func unescape(s string) string {
	if !strings.HasPrefix(s, "_") {
		return s
	}
	s = s[1:]
	if len(s) >= 2 {
		q := s[0]
		if (q == '\'' || q == '"') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}
