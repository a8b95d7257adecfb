package schema

import (
	"errors"
	"fmt"
	"testing"
)

func TestMappingError(t *testing.T) {
	err := &MappingError{Entity: "Post", Field: "tags", Message: "cannot map []string", Hint: "skip it"}

	want := "schema mapping error: Post.tags: cannot map []string (hint: skip it)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	wrapped := fmt.Errorf("building Post: %w", err)
	if !errors.Is(wrapped, ErrMapping) {
		t.Error("wrapped mapping error should match ErrMapping")
	}

	var target *MappingError
	if !errors.As(wrapped, &target) || target.Field != "tags" {
		t.Error("errors.As should recover the mapping error")
	}
}

func TestValidateTable(t *testing.T) {
	table := NewTable("empty", nil)
	if err := validateTable(table); err == nil {
		t.Error("expected error for table without primary key")
	}

	if err := table.Register(&Field{Name: "id", SQLType: "INT", Flags: FlagPrimary | FlagAutoIncrement}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validateTable(table); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := table.Register(&Field{Name: "id", SQLType: "INT"}); err == nil {
		t.Error("expected error for duplicate column")
	}
}
