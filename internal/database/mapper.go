package database

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

var timeType = reflect.TypeFor[time.Time]()

type field struct {
	index    int
	column   string
	readonly bool

	// computed columns only come from joins and aggregates; they are
	// readonly and not part of the table's allowlist.
	computed bool
}

type fieldSet struct {
	fields  []field
	columns []string
}

var fieldCache sync.Map // reflect.Type -> *fieldSet

// fieldsOf returns the db-tagged fields of struct type t. Untagged fields map
// to their lower-cased name; `db:"-"` skips a field. The options
// `readonly` and `computed` may follow the column name.
func fieldsOf(t reflect.Type) *fieldSet {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(*fieldSet)
	}

	fs := &fieldSet{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		name = strings.TrimSpace(name)
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		computed := opts == "computed"
		fs.fields = append(fs.fields, field{
			index:    i,
			column:   name,
			readonly: opts == "readonly" || computed,
			computed: computed,
		})
		if !computed {
			fs.columns = append(fs.columns, name)
		}
	}

	actual, _ := fieldCache.LoadOrStore(t, fs)
	return actual.(*fieldSet)
}

// columnsOf lists the stored columns of T.
func columnsOf[T any]() []string {
	return fieldsOf(reflect.TypeFor[T]()).columns
}

func structType(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil struct", ErrInvalidValue)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: expected struct, got %s", ErrInvalidValue, rv.Kind())
	}
	return rv, nil
}

// toRecord converts a tagged struct into a Record. Readonly fields and nil
// pointers are left out, which makes pointer-field structs partial updates.
func toRecord(v any) (Record, error) {
	rv, err := structType(v)
	if err != nil {
		return nil, err
	}

	rec := make(Record)
	for _, f := range fieldsOf(rv.Type()).fields {
		if f.readonly {
			continue
		}
		fv := rv.Field(f.index)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Type() == timeType && fv.Interface().(time.Time).IsZero() {
			continue
		}
		rec[f.column] = fv.Interface()
	}
	return rec, nil
}

// fromRecord fills the struct pointed to by dst from rec. Columns missing from
// rec leave their field untouched; NULL leaves pointer fields nil.
func fromRecord(rec Record, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: destination must be a non-nil pointer", ErrInvalidValue)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("%w: destination must point to a struct", ErrInvalidValue)
	}

	for _, f := range fieldsOf(rv.Type()).fields {
		if _, ok := rec[f.column]; !ok {
			continue
		}
		fv := rv.Field(f.index)
		if fv.Kind() == reflect.Pointer {
			if rec.IsNull(f.column) {
				fv.SetZero()
				continue
			}
			elem := reflect.New(fv.Type().Elem())
			if err := setColumn(elem.Elem(), rec, f.column); err != nil {
				return err
			}
			fv.Set(elem)
			continue
		}
		if err := setColumn(fv, rec, f.column); err != nil {
			return err
		}
	}
	return nil
}

func setColumn(dst reflect.Value, rec Record, col string) error {
	if dst.Type() == timeType {
		dst.Set(reflect.ValueOf(rec.Time(col)))
		return nil
	}
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(rec.String(col))
	case reflect.Bool:
		dst.SetBool(rec.Bool(col))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(rec.Int64(col))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst.SetUint(uint64(max(rec.Int64(col), 0)))
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(rec.Float64(col))
	default:
		return fmt.Errorf("%w: unsupported field type %s for column %s", ErrInvalidValue, dst.Type(), col)
	}
	return nil
}

// decode converts records into values of T.
func decode[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := fromRecord(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeOne[T any](rec Record) (*T, error) {
	var v T
	if err := fromRecord(rec, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
