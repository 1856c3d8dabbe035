package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

const decimalPrecision = 34

// Decimal is an arbitrary-precision decimal used for all monetary arithmetic.
// Float64 is never used for money: pricing math must be exact.
type Decimal struct {
	value apd.Decimal
}

// NewDecimal parses a decimal from its string representation.
func NewDecimal(s string) (Decimal, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{value: d}, nil
}

// MustDecimal parses a decimal and panics on failure. For constants and tests.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDecimalFromInt64 converts an integer unit count to a Decimal.
func NewDecimalFromInt64(i int64) Decimal {
	var d apd.Decimal
	d.SetInt64(i)
	return Decimal{value: d}
}

// NewDecimalFromFloat64 converts a float configuration knob (percentages,
// ratios) to a Decimal via its shortest decimal representation. Not for
// money amounts; those parse from strings.
func NewDecimalFromFloat64(f float64) Decimal {
	d, err := NewDecimal(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		return Decimal{}
	}
	return d
}

func (d Decimal) String() string {
	return d.value.String()
}

func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

func (d Decimal) IsNegative() bool {
	return d.value.Negative && !d.value.IsZero()
}

func (d Decimal) Cmp(other Decimal) int {
	return d.value.Cmp(&other.value)
}

// Add returns the sum of d and other.
func (d Decimal) Add(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(decimalPrecision)
	ctx.Add(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Sub returns d minus other.
func (d Decimal) Sub(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(decimalPrecision)
	ctx.Sub(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Mul returns the product of d and other.
func (d Decimal) Mul(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(decimalPrecision)
	ctx.Mul(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Div returns the quotient of d divided by other.
func (d Decimal) Div(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(decimalPrecision)
	ctx.Quo(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Percent returns d × p / 100.
func (d Decimal) Percent(p Decimal) Decimal {
	return d.Mul(p).Div(NewDecimalFromInt64(100))
}

// RoundHalfUp rounds to the given number of fractional digits using
// round-half-up (0.005 rounds to 0.01 at two places).
func (d Decimal) RoundHalfUp(places int32) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(decimalPrecision)
	ctx.Rounding = apd.RoundHalfUp
	ctx.Quantize(&result, &d.value, -places)
	return Decimal{value: result}
}

// FloorInt64 rounds toward negative infinity and returns the integral
// value, or an error if it does not fit in an int64. Exact for unit
// counts far beyond float64's 2^53 integer range.
func (d Decimal) FloorInt64() (int64, error) {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(decimalPrecision)
	if _, err := ctx.Floor(&result, &d.value); err != nil {
		return 0, err
	}
	return result.Int64()
}

// Float64 returns a float approximation for logging and display only.
func (d Decimal) Float64() float64 {
	f, _ := d.value.Float64()
	return f
}

// MarshalJSON encodes the decimal as a JSON string to avoid float rounding
// on the wire.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.value.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := NewDecimal(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalYAML accepts a YAML scalar (quoted or not).
func (d *Decimal) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := NewDecimal(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Money is a decimal amount in a specific currency.
type Money struct {
	Amount   Decimal `json:"amount"`
	Currency string  `json:"currency"`
}

// NewMoney creates a Money value.
func NewMoney(amount Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// minorDigits returns the minor-unit precision for a currency.
// Zero-decimal currencies round to whole units.
func minorDigits(currency string) int32 {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "VND":
		return 0
	default:
		return 2
	}
}

// Round rounds the amount half-up to the currency's minor-unit precision.
func (m Money) Round() Money {
	return Money{
		Amount:   m.Amount.RoundHalfUp(minorDigits(m.Currency)),
		Currency: m.Currency,
	}
}

// ClampZero floors negative amounts at zero. A quote never goes negative.
func (m Money) ClampZero() Money {
	if m.Amount.IsNegative() {
		return Money{Amount: NewDecimalFromInt64(0), Currency: m.Currency}
	}
	return m
}
