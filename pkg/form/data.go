package form

import "fmt"

// Data is the nested form payload. Leaves are strings, or nil for nullable
// fields that have not been chosen.
type Data map[string]any

// Get resolves a path inside the nested payload.
func (d Data) Get(path Path) (any, bool) {
	if d == nil || path.IsZero() {
		return nil, false
	}
	var current any = map[string]any(d)
	for _, segment := range path.Segments() {
		node, ok := asMap(current)
		if !ok {
			return nil, false
		}
		next, ok := node[segment]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Set writes value at path, creating intermediate objects as needed.
func (d Data) Set(path Path, value any) error {
	if d == nil {
		return fmt.Errorf("form: data is nil")
	}
	segments := path.Segments()
	if len(segments) == 0 {
		return fmt.Errorf("form: empty path")
	}
	node := map[string]any(d)
	for _, segment := range segments[:len(segments)-1] {
		child, ok := asMap(node[segment])
		if !ok {
			if existing, present := node[segment]; present && existing != nil {
				return fmt.Errorf("form: %q is not an object", segment)
			}
			child = make(map[string]any)
			node[segment] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
	return nil
}

// Clone returns a deep copy of the payload.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for key, value := range d {
		out[key] = deepCopy(value)
	}
	return out
}

func asMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case Data:
		return map[string]any(typed), true
	default:
		return nil, false
	}
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopy(v)
		}
		return clone
	case Data:
		return map[string]any(typed.Clone())
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	default:
		return typed
	}
}
