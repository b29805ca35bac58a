package extract

import (
	"bytes"

	json "github.com/json-iterator/go"
)

// Record is an ordered map of field name to extracted string value.
// The zero value is ready to use.
type Record struct {
	keys []string
	vals map[string]string
}

// NewRecord builds a record from alternating name/value pairs.
func NewRecord(kv ...string) Record {
	var r Record
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i], kv[i+1])
	}
	return r
}

// Set adds or replaces a field, keeping first-insertion order.
func (r *Record) Set(name, value string) {
	if r.vals == nil {
		r.vals = make(map[string]string)
	}
	if _, ok := r.vals[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.vals[name] = value
}

// Get returns the value of name, or "" when absent.
func (r Record) Get(name string) string { return r.vals[name] }

// Has reports whether name was set.
func (r Record) Has(name string) bool {
	_, ok := r.vals[name]
	return ok
}

// Keys returns the field names in insertion order.
func (r Record) Keys() []string { return append([]string(nil), r.keys...) }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// Map returns a copy of the fields as a plain map.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.keys))
	for _, k := range r.keys {
		m[k] = r.vals[k]
	}
	return m
}

// MarshalJSON writes the fields in insertion order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.vals[k])
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
