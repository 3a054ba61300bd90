package weather

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a display temperature unit.
type Unit string

const (
	Celsius    Unit = "celsius"
	Fahrenheit Unit = "fahrenheit"
)

// ParseUnit accepts "celsius"/"c" and "fahrenheit"/"f", case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "celsius", "c":
		return Celsius, nil
	case "fahrenheit", "f":
		return Fahrenheit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
}

// Symbol returns "C" or "F".
func (u Unit) Symbol() string {
	if u == Fahrenheit {
		return "F"
	}
	return "C"
}

// ConvertTemp converts a Celsius value to u and rounds it to a whole
// degree. Halves round toward positive infinity.
func ConvertTemp(celsius float64, u Unit) int {
	v := celsius
	if u == Fahrenheit {
		v = celsius*9/5 + 32
	}
	return roundHalfUp(v)
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
