package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SplitPath breaks a slash-separated path into its segments, dropping empty
// ones so "lobbies/ABC/" and "/lobbies/ABC" address the same node.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// JoinPath assembles path segments back into a slash-separated path.
func JoinPath(segs ...string) string {
	return strings.Join(segs, "/")
}

// Normalize converts an arbitrary Go value into the canonical JSON tree form
// (map[string]any, []any, string, float64, bool, nil) via a JSON round trip.
// The ServerTimestamp sentinel survives as its wire form.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

// Decode unmarshals a JSON tree into dest, typically a pointer to a struct.
func Decode(v any, dest any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// ResolveServerValues replaces every ServerTimestamp wire marker in the tree
// with now in epoch milliseconds. The tree is modified in place and returned.
func ResolveServerValues(v any, now time.Time) any {
	switch t := v.(type) {
	case map[string]any:
		if sv, ok := t[".sv"]; ok && len(t) == 1 && sv == "timestamp" {
			return float64(now.UnixMilli())
		}
		for k, child := range t {
			t[k] = ResolveServerValues(child, now)
		}
	case []any:
		for i := range t {
			t[i] = ResolveServerValues(t[i], now)
		}
	}
	return v
}

// GetAt returns the node addressed by path segments, or nil if any segment
// is missing along the way.
func GetAt(root any, segs []string) any {
	cur := root
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

// SetAt writes v at the addressed node, creating intermediate maps as
// needed, and returns the new root. A nil v removes the node.
func SetAt(root any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, ok := root.(map[string]any)
	if !ok || m == nil {
		m = map[string]any{}
	}
	next := SetAt(m[segs[0]], segs[1:], v)
	if next == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = next
	}
	return m
}

// MergeAt applies named child fields under the addressed node. Field keys
// may be slash-separated to reach deeper children, mirroring the multi-path
// update shape of Firebase-style stores.
func MergeAt(root any, segs []string, fields map[string]any) any {
	for key, v := range fields {
		p := append(append([]string{}, segs...), SplitPath(key)...)
		root = SetAt(root, p, v)
	}
	return root
}

// Prune removes nil children and collapses empty maps so a fully emptied
// document reads back as absent.
func Prune(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		p := Prune(child)
		if p == nil {
			delete(m, k)
		} else {
			m[k] = p
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Clone deep-copies a JSON tree.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = Clone(t[i])
		}
		return out
	default:
		return v
	}
}
