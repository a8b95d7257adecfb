// Package tracking holds the comparable projection of an entity taken at the
// last point it matched the database, and the change tracking built on it.
package tracking

import (
	"fmt"
	"reflect"

	"github.com/tiendc/go-deepcopy"
)

// Identity stands in for a related entity inside a snapshot. Persisted
// entities are identified by table and primary key, transient ones by address.
type Identity struct {
	Type  string
	ID    any
	Token string
}

// Persisted identifies a stored entity
func Persisted(table string, id any) Identity {
	return Identity{Type: table, ID: id}
}

// Transient identifies an entity that has no row yet
func Transient(entity any) Identity {
	return Identity{Token: fmt.Sprintf("%p", entity)}
}

// IsTransient reports whether the identity is an address token
func (i Identity) IsTransient() bool {
	return i.Token != ""
}

// String returns the string representation of the identity
func (i Identity) String() string {
	if i.IsTransient() {
		return "transient@" + i.Token
	}
	return fmt.Sprintf("%s#%v", i.Type, i.ID)
}

// Snapshot maps property names to plain values and identities
type Snapshot map[string]any

// Set stores a copy of v that later mutations of the source cannot reach
func (s Snapshot) Set(property string, v any) {
	s[property] = Copy(v)
}

// Copy deep-copies slices and maps; other values are returned as-is.
func Copy(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return v
		}
		src := reflect.New(rv.Type())
		src.Elem().Set(rv)
		dst := reflect.New(rv.Type())
		if err := deepcopy.Copy(dst.Interface(), src.Interface()); err != nil {
			return v
		}
		return dst.Elem().Interface()
	default:
		return v
	}
}
