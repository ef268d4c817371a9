// Package csvexport renders record lists as the CSV format used for downloads:
// an unquoted header row followed by one row per record with every value
// wrapped in double quotes. Values are not escaped.
package csvexport

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Marshal renders records, a slice of structs, struct pointers or
// map[string]any. Struct columns follow json tag names in declaration order
// with embedded structs flattened; map columns are the sorted keys of the
// first record. An empty slice renders as "".
func Marshal(records any) (string, error) {
	v := reflect.ValueOf(records)
	if !v.IsValid() {
		return "", nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return "", fmt.Errorf("csvexport: expected slice, got %s", v.Kind())
	}
	if v.Len() == 0 {
		return "", nil
	}

	first := indirect(v.Index(0))
	var (
		headers []string
		row     func(reflect.Value) []string
	)
	switch first.Kind() {
	case reflect.Struct:
		cols := structColumns(first.Type(), nil)
		for _, c := range cols {
			headers = append(headers, c.name)
		}
		row = func(rv reflect.Value) []string {
			out := make([]string, len(cols))
			for i, c := range cols {
				out[i] = format(fieldByIndex(rv, c.index))
			}
			return out
		}
	case reflect.Map:
		if first.Type().Key().Kind() != reflect.String {
			return "", fmt.Errorf("csvexport: map keys must be strings")
		}
		for _, k := range first.MapKeys() {
			headers = append(headers, k.String())
		}
		sort.Strings(headers)
		row = func(rv reflect.Value) []string {
			out := make([]string, len(headers))
			for i, h := range headers {
				if rv.Kind() == reflect.Map {
					out[i] = format(rv.MapIndex(reflect.ValueOf(h).Convert(rv.Type().Key())))
				}
			}
			return out
		}
	default:
		return "", fmt.Errorf("csvexport: unsupported record kind %s", first.Kind())
	}

	lines := make([]string, 0, v.Len()+1)
	lines = append(lines, strings.Join(headers, ","))
	for i := 0; i < v.Len(); i++ {
		values := row(indirect(v.Index(i)))
		for j := range values {
			values[j] = `"` + values[j] + `"`
		}
		lines = append(lines, strings.Join(values, ","))
	}
	return strings.Join(lines, "\n"), nil
}

type column struct {
	name  string
	index []int
}

func structColumns(t reflect.Type, parent []int) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), parent...), i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if f.Anonymous && name == "" && ft.Kind() == reflect.Struct {
			cols = append(cols, structColumns(ft, index)...)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		cols = append(cols, column{name: name, index: index})
	}
	return cols
}

func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for _, i := range index {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// format renders one value; nil and missing values render as "".
func format(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Type() {
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339)
	case uuidType:
		return v.Interface().(uuid.UUID).String()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v.Interface())
	case reflect.Slice, reflect.Map, reflect.Struct, reflect.Array:
		if (v.Kind() == reflect.Slice || v.Kind() == reflect.Map) && v.IsNil() {
			return ""
		}
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return fmt.Sprint(v.Interface())
		}
		return string(b)
	default:
		return fmt.Sprint(v.Interface())
	}
}
