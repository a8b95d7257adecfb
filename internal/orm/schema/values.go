package schema

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// DateTimeFormat is the layout of DATETIME literals.
const DateTimeFormat = "2006-01-02 15:04:05"

var timeType = reflect.TypeOf(time.Time{})

var stringEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"'", "\\'",
	"\"", "\\\"",
	"\x00", "\\0",
	"\n", "\\n",
	"\r", "\\r",
	"\x1a", "\\Z",
)

// Escape escapes a string for use inside a single-quoted MySQL literal
func Escape(s string) string {
	return stringEscaper.Replace(s)
}

// QuoteIdentifier backtick-quotes a column name
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteString renders a single-quoted, escaped string literal
func QuoteString(s string) string {
	return "'" + Escape(s) + "'"
}

// FieldLiteral renders the value bound to f. A nil value becomes DEFAULT for
// the primary key, the column default if one is declared, and NULL otherwise.
func FieldLiteral(f *Field, value any) string {
	if value == nil {
		if f.IsPrimaryKey() {
			return "DEFAULT"
		}
		if f.Default != nil {
			return DefaultLiteral(f)
		}
		return "NULL"
	}
	return Literal(value)
}

// DefaultLiteral renders the declared default of f. Defaults given as text on
// numeric or boolean columns are written as-is.
func DefaultLiteral(f *Field) string {
	if s, ok := f.Default.(string); ok && (f.IsNumeric() || f.IsBool()) {
		return strings.ToUpper(s)
	}
	return Literal(f.Default)
}

// Literal renders a Go value as a MySQL literal. Numbers are unquoted,
// booleans are TRUE or FALSE and everything else is a quoted string.
func Literal(value any) string {
	if value == nil {
		return "NULL"
	}

	if valuer, ok := value.(driver.Valuer); ok {
		v, err := valuer.Value()
		if err != nil || v == nil {
			return "NULL"
		}
		if _, same := v.(driver.Valuer); !same {
			return Literal(v)
		}
	}

	switch v := value.(type) {
	case time.Time:
		return QuoteString(v.Format(DateTimeFormat))
	case []byte:
		return QuoteString(string(v))
	case fmt.Stringer:
		if rv := reflect.ValueOf(value); rv.Kind() == reflect.Struct {
			return QuoteString(v.String())
		}
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL"
		}
		return Literal(rv.Elem().Interface())
	case reflect.Bool:
		if rv.Bool() {
			return "TRUE"
		}
		return "FALSE"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.String:
		return QuoteString(rv.String())
	default:
		return QuoteString(fmt.Sprint(value))
	}
}

// assign coerces a scanned column value into dst
func assign(dst reflect.Value, src any) error {
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		v := reflect.New(dst.Type().Elem())
		if err := assign(v.Elem(), src); err != nil {
			return err
		}
		dst.Set(v)
		return nil
	}

	if dst.Type() == timeType {
		t, err := toTime(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(toString(src))
	case reflect.Bool:
		b, err := toBool(src)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(src)
		if err != nil {
			return err
		}
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(src)
		if err != nil {
			return err
		}
		if dst.Kind() == reflect.Float32 && math.Abs(f) > math.MaxFloat32 {
			return fmt.Errorf("value %g overflows %s", f, dst.Type())
		}
		dst.SetFloat(f)
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
		}
		var b []byte
		switch v := src.(type) {
		case []byte:
			b = append([]byte(nil), v...)
		default:
			b = []byte(toString(src))
		}
		dst.SetBytes(b)
	default:
		return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
	}

	return nil
}

func toString(src any) string {
	switch v := src.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(DateTimeFormat)
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(src any) (int64, error) {
	switch v := src.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}

	rv := reflect.ValueOf(src)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("cannot convert %T to an integer", src)
}

func toFloat64(src any) (float64, error) {
	switch v := src.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}

	n, err := toInt64(src)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to a float", src)
	}
	return float64(n), nil
}

func toBool(src any) (bool, error) {
	switch v := src.(type) {
	case bool:
		return v, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	}

	n, err := toInt64(src)
	if err != nil {
		return false, fmt.Errorf("cannot convert %T to a bool", src)
	}
	return n != 0, nil
}

func toTime(src any) (time.Time, error) {
	var s string
	switch v := src.(type) {
	case time.Time:
		return v, nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to a time", src)
	}

	for _, layout := range []string{DateTimeFormat, "2006-01-02 15:04:05.999999", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}

// AssignValue coerces src into the settable value dst
func AssignValue(dst reflect.Value, src any) error {
	return assign(dst, src)
}
