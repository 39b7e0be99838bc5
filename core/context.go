package core

import "encoding/json"

// VarType is the declared type of a context variable.
type VarType string

const (
	VarString  VarType = "string"
	VarNumber  VarType = "number"
	VarBoolean VarType = "boolean"
	VarObject  VarType = "object"
)

// KnownVarType reports whether t is a declared variable type.
func KnownVarType(t VarType) bool {
	switch t {
	case VarString, VarNumber, VarBoolean, VarObject:
		return true
	}
	return false
}

// VarDecl declares one variable in a cartridge's memory schema.
type VarDecl struct {
	Name    string      `json:"name" yaml:"name"`
	Type    VarType     `json:"type" yaml:"type"`
	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// zero gives the value for a declared variable with no default.
func (d *VarDecl) zero() interface{} {
	switch d.Type {
	case VarNumber:
		return float64(0)
	case VarBoolean:
		return false
	case VarObject:
		return map[string]interface{}{}
	default:
		return ""
	}
}

// ContextStore is a cartridge instance's memory: a mutable map from
// declared variable names to values.
//
// The Engine that created the store owns it.  Stores are handed to
// ActionExecutors during transitions; everything else sees only
// Snapshot copies.  Variables live until the instance is disposed.
type ContextStore struct {
	vals map[string]interface{}
}

// NewContextStore builds a store from a memory schema, applying each
// declaration's default (or the type's zero value).
func NewContextStore(schema []VarDecl) *ContextStore {
	vals := make(map[string]interface{}, len(schema))
	for i := range schema {
		d := &schema[i]
		if d.Default != nil {
			// Copied so that instances sharing a definition
			// can't see each other's mutations.
			vals[d.Name] = deepCopy(d.Default)
		} else {
			vals[d.Name] = d.zero()
		}
	}
	return &ContextStore{vals: vals}
}

// Lookup implements ContextView.
func (s *ContextStore) Lookup(key string) (interface{}, bool) {
	x, have := s.vals[key]
	return x, have
}

// Set assigns a variable.  Only action execution should call this
// method; the engine never exposes its live store.
func (s *ContextStore) Set(key string, val interface{}) {
	s.vals[key] = val
}

// Len returns the number of variables.
func (s *ContextStore) Len() int {
	return len(s.vals)
}

// Snapshot returns a deep copy of the store's contents.  Mutating the
// result cannot affect the store.
func (s *ContextStore) Snapshot() map[string]interface{} {
	acc := make(map[string]interface{}, len(s.vals))
	for k, v := range s.vals {
		acc[k] = deepCopy(v)
	}
	return acc
}

// deepCopy copies nested maps and slices.  A round trip through JSON
// would also work (and canonicalize numbers), but this avoids the
// serialization cost for the common scalar case.
func deepCopy(x interface{}) interface{} {
	switch v := x.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, val := range v {
			m[k] = deepCopy(val)
		}
		return m
	case []interface{}:
		xs := make([]interface{}, len(v))
		for i, val := range v {
			xs[i] = deepCopy(val)
		}
		return xs
	case string, bool, float64, int, int64, float32, nil:
		return v
	}

	// Fall back to a JSON round trip for anything exotic.
	js, err := json.Marshal(&x)
	if err != nil {
		return x
	}
	var y interface{}
	if err = json.Unmarshal(js, &y); err != nil {
		return x
	}
	return y
}
