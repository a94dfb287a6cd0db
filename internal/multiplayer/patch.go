package multiplayer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Patch is a partial record keyed by JSON field name
type Patch map[string]any

// fields the store owns; patches never set them
var protectedFields = []string{"id", "version"}

// Merge returns r with p applied. Keys set to nil clear the field.
func Merge(r *Record, p Patch) (*Record, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	for k, v := range p {
		fields[k] = v
	}
	for _, k := range protectedFields {
		fields[k] = nil
	}

	raw, err = json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}
	var out Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}
	out.ID, out.Version = r.ID, r.Version
	return &out, nil
}

// Diff returns the patch that turns before into after
func Diff(before, after *Record) (Patch, error) {
	b, err := fieldsOf(before)
	if err != nil {
		return nil, err
	}
	a, err := fieldsOf(after)
	if err != nil {
		return nil, err
	}

	p := Patch{}
	for k, v := range a {
		if old, ok := b[k]; !ok || !bytes.Equal(old, v) {
			p[k] = v
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			p[k] = nil
		}
	}
	for _, k := range protectedFields {
		delete(p, k)
	}
	return p, nil
}

func fieldsOf(r *Record) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return fields, nil
}
