package form

import "strings"

// pathSep joins segments inside the comparable key. It never appears in
// field names, so a segment holding a literal dot stays a single segment.
const pathSep = "\x1f"

// Path addresses a field as an explicit list of segments ("address",
// "zipcode"). Paths are comparable and can be used as map keys.
type Path struct {
	key string
}

// NewPath builds a Path from its segments. Empty segments are dropped.
func NewPath(segments ...string) Path {
	clean := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		clean = append(clean, segment)
	}
	return Path{key: strings.Join(clean, pathSep)}
}

// ParsePath converts dot notation ("address.zipcode") into a Path. It is
// meant for the edges of the system: HTTP field names and error payloads.
func ParsePath(dotted string) Path {
	trimmed := strings.Trim(strings.TrimSpace(dotted), ".")
	if trimmed == "" {
		return Path{}
	}
	return NewPath(strings.Split(trimmed, ".")...)
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	if p.key == "" {
		return nil
	}
	return strings.Split(p.key, pathSep)
}

// Len reports the number of segments.
func (p Path) Len() int {
	if p.key == "" {
		return 0
	}
	return strings.Count(p.key, pathSep) + 1
}

// IsZero reports whether the path has no segments.
func (p Path) IsZero() bool {
	return p.key == ""
}

// Child appends segments to the path.
func (p Path) Child(segments ...string) Path {
	return NewPath(append(p.Segments(), segments...)...)
}

// Scope returns the parent path ("address" for "address.zipcode").
func (p Path) Scope() Path {
	segments := p.Segments()
	if len(segments) <= 1 {
		return Path{}
	}
	return NewPath(segments[:len(segments)-1]...)
}

// Name returns the last segment.
func (p Path) Name() string {
	segments := p.Segments()
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// String renders the path in dot notation for display and error keys.
func (p Path) String() string {
	return strings.ReplaceAll(p.key, pathSep, ".")
}

// MarshalText renders the dotted form so paths can key JSON objects.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses dot notation.
func (p *Path) UnmarshalText(text []byte) error {
	*p = ParsePath(string(text))
	return nil
}

// DottedKeys converts a path-keyed mapping into dot-notation keys, the
// shape used by HTTP payloads and templates.
func DottedKeys(messages map[Path]string) map[string]string {
	if len(messages) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(messages))
	for path, message := range messages {
		out[path.String()] = message
	}
	return out
}
