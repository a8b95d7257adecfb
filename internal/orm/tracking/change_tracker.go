package tracking

import (
	"reflect"
	"sort"
)

// FieldChange represents a change to a single property
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
}

// ChangeTracker compares a cached snapshot against a fresh projection
type ChangeTracker struct {
	original Snapshot
	current  Snapshot
	changes  map[string]*FieldChange
}

// NewChangeTracker computes the changes between two snapshots
// original: the projection cached when the entity last matched its row
// current: the projection of the live entity
func NewChangeTracker(original, current Snapshot) *ChangeTracker {
	ct := &ChangeTracker{
		original: original,
		current:  current,
		changes:  make(map[string]*FieldChange),
	}
	ct.computeChanges()
	return ct
}

func (ct *ChangeTracker) computeChanges() {
	for field, newValue := range ct.current {
		oldValue, hadOldValue := ct.original[field]
		if !hadOldValue || !deepEqual(oldValue, newValue) {
			ct.changes[field] = &FieldChange{
				Field:    field,
				OldValue: oldValue,
				NewValue: newValue,
			}
		}
	}

	for field, oldValue := range ct.original {
		if _, exists := ct.current[field]; !exists {
			ct.changes[field] = &FieldChange{
				Field:    field,
				OldValue: oldValue,
				NewValue: nil,
			}
		}
	}
}

// deepEqual compares two values for equality, handling nil
func deepEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// ChangedFields returns the changed properties in name order
func (ct *ChangeTracker) ChangedFields() []string {
	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Changes returns the changes in property name order
func (ct *ChangeTracker) Changes() []*FieldChange {
	changes := make([]*FieldChange, 0, len(ct.changes))
	for _, field := range ct.ChangedFields() {
		changes = append(changes, ct.changes[field])
	}
	return changes
}

// HasChanges returns true if any property has changed
func (ct *ChangeTracker) HasChanges() bool {
	return len(ct.changes) > 0
}
