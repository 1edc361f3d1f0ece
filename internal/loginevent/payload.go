package loginevent

import (
	"bytes"
	"encoding/json"
)

// Field is one labelled value of a login payload.
type Field struct {
	Label string
	Value any
}

// Payload is an ordered collection of fields. It encodes as a JSON object
// whose keys keep insertion order.
type Payload []Field

// Get returns the value stored under label.
func (p Payload) Get(label string) (any, bool) {
	for _, f := range p {
		if f.Label == label {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under label in place, or appends a new field.
func (p Payload) Set(label string, value any) Payload {
	for i := range p {
		if p[i].Label == label {
			p[i].Value = value
			return p
		}
	}
	return append(p, Field{Label: label, Value: value})
}

// Labels lists the field labels in order.
func (p Payload) Labels() []string {
	out := make([]string, len(p))
	for i, f := range p {
		out[i] = f.Label
	}
	return out
}

// MarshalJSON encodes p as an object. A repeated label is written once, at
// its first position, with the last value assigned to it.
func (p Payload) MarshalJSON() ([]byte, error) {
	last := make(map[string]any, len(p))
	for _, f := range p {
		last[f.Label] = f.Value
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]struct{}, len(p))
	for _, f := range p {
		if _, dup := written[f.Label]; dup {
			continue
		}
		written[f.Label] = struct{}{}
		if len(written) > 1 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(last[f.Label])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
