package backend

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"time"

	"github.com/govalues/decimal"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func validateColumns[V any](m map[string]V) error {
	for col := range m {
		if err := validateIdentifier(col); err != nil {
			return err
		}
	}
	return nil
}

// Record is a single row keyed by column name.
//
// Values are normalised on the way in: decimals and string kinds become
// strings, integer kinds int64, times UTC. Rows that crossed a JSON bus carry
// float64 numbers and RFC 3339 strings, which the accessors also accept.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsNull reports whether key is absent or nil.
func (r Record) IsNull(key string) bool {
	v, ok := r[key]
	return !ok || v == nil
}

// String returns the value of key as a string.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Decimal parses the value of key as a decimal. Null values yield zero.
func (r Record) Decimal(key string) (decimal.Decimal, error) {
	d, err := r.NullDecimal(key)
	if err != nil || d == nil {
		return decimal.Zero, err
	}
	return *d, nil
}

// NullDecimal parses the value of key as a decimal, returning nil for null.
func (r Record) NullDecimal(key string) (*decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := r[key].(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		d = v
	case string:
		d, err = decimal.Parse(v)
	case []byte:
		d, err = decimal.Parse(string(v))
	case float64:
		d, err = decimal.NewFromFloat64(v)
	case int64:
		d, err = decimal.New(v, 0)
	default:
		return nil, fmt.Errorf("column %s: unsupported decimal type %T", key, v)
	}
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", key, err)
	}
	return &d, nil
}

// Time returns the value of key as a time, or the zero time.
func (r Record) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

// NullTime returns the value of key as a time pointer, nil when unset.
func (r Record) NullTime(key string) *time.Time {
	t := r.Time(key)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Bool returns the value of key as a bool.
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Int returns the value of key as an int64.
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Float returns the value of key as a float64.
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	}
	return 0
}

// Matches reports whether rec satisfies every condition of f.
func (f Filter) Matches(rec Record) bool {
	for col, want := range f {
		got := valueKey(normalize(rec[col]))
		if !matchesValue(got, want) {
			return false
		}
	}
	return true
}

func matchesValue(got string, want any) bool {
	rv := reflect.ValueOf(want)
	if want != nil && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			if valueKey(normalize(rv.Index(i).Interface())) == got {
				return true
			}
		}
		return false
	}
	return valueKey(normalize(want)) == got
}

// normalize converts Go values into the small set of types a Record holds.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return x.String()
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return x.String()
	case time.Time:
		return x.UTC()
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC()
	case []byte:
		return string(x)
	case string, bool, int64, float64:
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

func normalizeRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = normalize(v)
	}
	return out
}

// valueKey renders a normalised value for equality comparisons.
func valueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00null"
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// compareValues orders two normalised values of the same column.
func compareValues(a, b any) int {
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	ka, kb := valueKey(a), valueKey(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}
