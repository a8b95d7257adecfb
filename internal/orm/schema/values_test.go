package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteral(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	n := 12

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "NULL"},
		{"true", true, "TRUE"},
		{"false", false, "FALSE"},
		{"int", 42, "42"},
		{"negative int64", int64(-7), "-7"},
		{"uint", uint8(3), "3"},
		{"float", 0.5, "0.5"},
		{"string", "x", "'x'"},
		{"quote", "O'Brien", `'O\'Brien'`},
		{"control characters", "a\nb\x00", `'a\nb\0'`},
		{"bytes", []byte("raw"), "'raw'"},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "'2024-01-02 03:04:05'"},
		{"pointer", &n, "12"},
		{"nil pointer", (*int)(nil), "NULL"},
		{"valuer", id, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Literal(tt.value))
		})
	}
}

func TestFieldLiteral(t *testing.T) {
	pk := &Field{Name: "id", SQLType: "INT", Flags: FlagPrimary}
	plain := &Field{Name: "name", SQLType: "VARCHAR(255)"}
	numeric := &Field{Name: "rank", SQLType: "INT", Default: "10"}
	text := &Field{Name: "state", SQLType: "VARCHAR(16)", Default: "new"}

	assert.Equal(t, "DEFAULT", FieldLiteral(pk, nil))
	assert.Equal(t, "NULL", FieldLiteral(plain, nil))
	assert.Equal(t, "10", FieldLiteral(numeric, nil))
	assert.Equal(t, "'new'", FieldLiteral(text, nil))
	assert.Equal(t, "'set'", FieldLiteral(text, "set"))
	assert.Equal(t, "`state` VARCHAR(16) DEFAULT 'new'", columnDefinition(text))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`id`", QuoteIdentifier("id"))
	assert.Equal(t, "`we``ird`", QuoteIdentifier("we`ird"))
}

func TestAssign(t *testing.T) {
	type target struct {
		S  string
		I  int
		U  uint8
		F  float32
		B  bool
		P  *string
		T  time.Time
		By []byte
	}

	var dst target
	v := reflect.ValueOf(&dst).Elem()

	require.NoError(t, assign(v.Field(0), []byte("text")))
	require.NoError(t, assign(v.Field(1), []byte("42")))
	require.NoError(t, assign(v.Field(2), int64(200)))
	require.NoError(t, assign(v.Field(3), "1.5"))
	require.NoError(t, assign(v.Field(4), int64(1)))
	require.NoError(t, assign(v.Field(5), "ptr"))
	require.NoError(t, assign(v.Field(6), []byte("2024-01-02 03:04:05")))
	require.NoError(t, assign(v.Field(7), []byte{1, 2}))

	assert.Equal(t, "text", dst.S)
	assert.Equal(t, 42, dst.I)
	assert.Equal(t, uint8(200), dst.U)
	assert.Equal(t, float32(1.5), dst.F)
	assert.True(t, dst.B)
	require.NotNil(t, dst.P)
	assert.Equal(t, "ptr", *dst.P)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), dst.T)
	assert.Equal(t, []byte{1, 2}, dst.By)

	require.NoError(t, assign(v.Field(5), nil))
	assert.Nil(t, dst.P)

	assert.Error(t, assign(v.Field(2), int64(300)))
	assert.Error(t, assign(v.Field(1), "nope"))
}

func TestTableValue(t *testing.T) {
	table := mustBuild(newTestRegistry(), annotated{})
	pk := table.PrimaryKey()
	str, _ := table.FieldByProperty("String")
	boolean, _ := table.FieldByProperty("Boolean")

	e := &annotated{}
	assert.Nil(t, table.Value(reflect.ValueOf(e), pk))
	assert.Equal(t, "", table.Value(reflect.ValueOf(e), str))
	assert.Nil(t, table.Value(reflect.ValueOf(e), boolean))

	require.NoError(t, table.SetID(reflect.ValueOf(e), []byte("abc")))
	assert.Equal(t, "abc", table.ID(reflect.ValueOf(e)))
}
