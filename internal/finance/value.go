package finance

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a single cell of a Frame or result table. A cell is either a
// number, missing (no input or not enough history) or undefined (a ratio
// with a zero denominator, carried as NaN).
type Value struct {
	v  float64
	ok bool
}

// Number wraps f. A NaN argument yields an undefined cell.
func Number(f float64) Value { return Value{v: f, ok: true} }

// Missing is the marker for absent input or insufficient history.
func Missing() Value { return Value{} }

// Undefined is the NaN sentinel for an undefined ratio.
func Undefined() Value { return Value{v: math.NaN(), ok: true} }

func (x Value) IsMissing() bool { return !x.ok }

func (x Value) IsUndefined() bool { return x.ok && math.IsNaN(x.v) }

// Valid reports whether x holds a usable number.
func (x Value) Valid() bool { return x.ok && !math.IsNaN(x.v) }

// Float returns the number and whether it is valid.
func (x Value) Float() (float64, bool) {
	return x.v, x.Valid()
}

// Raw returns the underlying float: NaN for undefined and missing cells.
func (x Value) Raw() float64 {
	if !x.ok {
		return math.NaN()
	}
	return x.v
}

func (x Value) String() string {
	switch {
	case !x.ok:
		return "—"
	case math.IsNaN(x.v):
		return "NaN"
	default:
		return strconv.FormatFloat(x.v, 'f', 4, 64)
	}
}

// MarshalJSON encodes missing as null and undefined as the string "NaN".
// Infinities are strings too ("+Inf", "-Inf").
func (x Value) MarshalJSON() ([]byte, error) {
	switch {
	case !x.ok:
		return []byte("null"), nil
	case math.IsNaN(x.v):
		return []byte(`"NaN"`), nil
	case math.IsInf(x.v, 0):
		return json.Marshal(strconv.FormatFloat(x.v, 'f', -1, 64))
	default:
		return json.Marshal(x.v)
	}
}

func (x *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*x = Missing()
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !(math.IsNaN(f) || math.IsInf(f, 0)) {
			return fmt.Errorf("finance: invalid value %s", b)
		}
		*x = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*x = Number(f)
	return nil
}
