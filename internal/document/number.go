package document

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric leaf that keeps the literal text it was built from,
// so 2020 and 2020.0 serialize back exactly as they were written.
type Number struct {
	text string
}

// ParseNumber builds a Number from a JSON number literal.
func ParseNumber(text string) (Number, error) {
	if text == "" || !(text[0] == '-' || isDigit(text[0])) || !isDigit(text[len(text)-1]) || !json.Valid([]byte(text)) {
		return Number{}, fmt.Errorf("invalid number literal %q", text)
	}
	return Number{text: text}, nil
}

// IntNumber returns an integral Number.
func IntNumber(i int64) Number {
	return Number{text: strconv.FormatInt(i, 10)}
}

// FloatNumber formats f with exactly scale fraction digits. A negative
// scale selects the shortest representation. It panics on NaN or Inf,
// which have no JSON form.
func FloatNumber(f float64, scale int) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic(fmt.Sprintf("document: %v is not representable as a JSON number", f))
	}
	return Number{text: strconv.FormatFloat(f, 'f', scale, 64)}
}

// String returns the literal text.
func (n Number) String() string {
	if n.text == "" {
		return "0"
	}
	return n.text
}

// IsFractional reports whether the literal had a fractional part.
func (n Number) IsFractional() bool {
	return strings.IndexByte(n.text, '.') >= 0
}

// Scale is the number of digits written after the decimal point.
func (n Number) Scale() int {
	dot := strings.IndexByte(n.text, '.')
	if dot < 0 {
		return 0
	}
	frac := n.text[dot+1:]
	if e := strings.IndexAny(frac, "eE"); e >= 0 {
		frac = frac[:e]
	}
	return len(frac)
}

// Int64 returns the value when the literal is a plain integer in range.
func (n Number) Int64() (int64, bool) {
	i, err := strconv.ParseInt(n.String(), 10, 64)
	return i, err == nil
}

// Float64 returns the nearest float64 to the literal.
func (n Number) Float64() float64 {
	f, _ := strconv.ParseFloat(n.String(), 64)
	return f
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
