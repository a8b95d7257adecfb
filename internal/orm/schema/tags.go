package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TagName is the struct tag key read by the builder
const TagName = "orm"

type tagOptions struct {
	skip      bool
	id        bool
	noAuto    bool
	unique    bool
	notNull   bool
	column    string
	sqlType   string
	def       *string
	table     string
	joinTable bool
	joinName  string
}

// parseTag reads `orm:"id;noauto;field:my_id;type:VARCHAR(13)"`
func parseTag(tag string) (tagOptions, error) {
	var opts tagOptions

	tag = strings.TrimSpace(tag)
	if tag == "-" {
		opts.skip = true
		return opts, nil
	}

	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "-", "transient":
			opts.skip = true
		case "id":
			opts.id = true
		case "noauto":
			opts.noAuto = true
		case "unique":
			opts.unique = true
		case "notnull":
			opts.notNull = true
		case "field", "column":
			opts.column = value
		case "type":
			opts.sqlType = value
		case "default":
			v := value
			opts.def = &v
		case "table":
			opts.table = value
		case "jointable":
			opts.joinTable = true
			opts.joinName = value
		default:
			return opts, fmt.Errorf("unknown tag option %q", key)
		}

		if hasValue && value == "" && key != "default" {
			return opts, fmt.Errorf("tag option %q needs a value", key)
		}
	}

	return opts, nil
}

// sqlTypeFor infers the column type of a scalar Go type
func sqlTypeFor(t reflect.Type) (string, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == reflect.TypeOf(time.Time{}) {
		return "DATETIME", true
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return "BLOB", true
	}

	switch t.Kind() {
	case reflect.String:
		return "VARCHAR(255)", true
	case reflect.Bool:
		return "BOOL", true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return "INT", true
	case reflect.Int64, reflect.Uint64:
		return "BIGINT", true
	case reflect.Float32:
		return "FLOAT", true
	case reflect.Float64:
		return "DOUBLE", true
	default:
		return "", false
	}
}
