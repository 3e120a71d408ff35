package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type valueState uint8

const (
	stateUnset valueState = iota
	stateNull
	stateSet
)

// Value is a normalized field value. The zero Value is Unset: the source
// never supplied the field. Null is an explicit null, and a set value is
// always held in its normalized string form.
type Value struct {
	state valueState
	s     string
}

func Unset() Value { return Value{} }

func Null() Value { return Value{state: stateNull} }

func String(s string) Value { return Value{state: stateSet, s: s} }

func (v Value) IsUnset() bool { return v.state == stateUnset }

func (v Value) IsSet() bool { return v.state == stateSet }

// String returns the normalized value, empty for unset and null.
func (v Value) String() string { return v.s }

// Equal is strict: unset, null and "" are three different values.
func (v Value) Equal(o Value) bool {
	return v.state == o.state && v.s == o.s
}

// Persists reports whether storing v would leave p unchanged. The target
// store cannot tell unset from null, so both compare equal to a stored NULL.
func (v Value) Persists(p Value) bool {
	if !v.IsSet() && !p.IsSet() {
		return true
	}
	return v.Equal(p)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(v.s)
}

const (
	dateLayout = "2006-01-02"
)

// Normalize converts a raw source value into a Value of the given kind.
func Normalize(kind Kind, raw any) (Value, error) {
	if raw == nil {
		return Null(), nil
	}
	if valuer, ok := raw.(driver.Valuer); ok {
		v, err := valuer.Value()
		if err != nil {
			return Value{}, err
		}
		if v == nil {
			return Null(), nil
		}
		raw = v
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	switch kind {
	case KindNumber:
		return normalizeNumber(raw)
	case KindDate:
		return normalizeDate(raw)
	case KindBool:
		return normalizeBool(raw)
	default:
		return normalizeString(raw)
	}
}

func normalizeString(raw any) (Value, error) {
	switch typed := raw.(type) {
	case string:
		return String(typed), nil
	case bool:
		return String(strconv.FormatBool(typed)), nil
	case time.Time:
		return String(typed.UTC().Format(time.RFC3339)), nil
	case fmt.Stringer:
		return String(typed.String()), nil
	}
	if d, ok := decimalOf(raw); ok {
		return String(d.String()), nil
	}
	return String(fmt.Sprint(raw)), nil
}

func normalizeNumber(raw any) (Value, error) {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return Null(), nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, fmt.Errorf("not a number: %q", s)
		}
		return String(d.String()), nil
	}
	if d, ok := decimalOf(raw); ok {
		return String(d.String()), nil
	}
	return Value{}, fmt.Errorf("not a number: %v", raw)
}

func decimalOf(raw any) (decimal.Decimal, bool) {
	switch typed := raw.(type) {
	case int:
		return decimal.NewFromInt(int64(typed)), true
	case int32:
		return decimal.NewFromInt32(typed), true
	case int64:
		return decimal.NewFromInt(typed), true
	case uint32:
		return decimal.NewFromInt(int64(typed)), true
	case float32:
		if !finite(float64(typed)) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(typed), true
	case float64:
		if !finite(typed) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(typed), true
	case decimal.Decimal:
		return typed, true
	case *big.Rat:
		if typed == nil {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(typed.FloatString(18))
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(typed.String())
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

// finite excludes NaN and the infinities, which decimal cannot represent.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func normalizeDate(raw any) (Value, error) {
	switch typed := raw.(type) {
	case time.Time:
		return String(typed.UTC().Format(dateLayout)), nil
	case fmt.Stringer:
		raw = typed.String()
	}
	s, ok := raw.(string)
	if !ok {
		return Value{}, fmt.Errorf("not a date: %v", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Null(), nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return String(t.UTC().Format(dateLayout)), nil
		}
	}
	return Value{}, fmt.Errorf("not a date: %q", s)
}

func normalizeBool(raw any) (Value, error) {
	switch typed := raw.(type) {
	case bool:
		return String(strconv.FormatBool(typed)), nil
	case string:
		s := strings.TrimSpace(typed)
		if s == "" {
			return Null(), nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("not a bool: %q", s)
		}
		return String(strconv.FormatBool(b)), nil
	}
	if d, ok := decimalOf(raw); ok {
		return String(strconv.FormatBool(!d.IsZero())), nil
	}
	return Value{}, fmt.Errorf("not a bool: %v", raw)
}
