package common

import (
	decimal2 "github.com/govalues/decimal"
)

type Decimal struct {
	decimal2.Decimal
}

func (dec *Decimal) Equal(o *Decimal) bool {
	return dec.Decimal.Cmp(o.Decimal) == 0
}

func (dec *Decimal) String() string {
	return dec.Decimal.String()
}

func (dec *Decimal) Add(lhs *Decimal, rhs *Decimal) {
	res, err := lhs.Decimal.Add(rhs.Decimal)
	if err != nil {
		panic(err)
	}
	lhs.Decimal = res
}

func (dec *Decimal) Mul(lhs *Decimal, rhs *Decimal) {
	res, err := lhs.Decimal.Mul(rhs.Decimal)
	if err != nil {
		panic(err)
	}
	lhs.Decimal = res
}

func (dec *Decimal) Less(lhs, rhs *Decimal) bool {
	return lhs.Decimal.Cmp(rhs.Decimal) < 0
}

func (dec *Decimal) Greater(lhs, rhs *Decimal) bool {
	return lhs.Decimal.Cmp(rhs.Decimal) > 0
}

func NegateDecimal(input *Decimal, result *Decimal) {
	result.Decimal = input.Decimal.Neg()
}

// ParseDecimal parses a decimal literal the way Value.String renders
// one (vector.go's DECIMAL case), used by the aggregate package's
// sum accumulator to widen a scanned Value back into a Decimal
// it can add without losing precision.
func ParseDecimal(s string) (Decimal, error) {
	d, err := decimal2.Parse(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Decimal: d}, nil
}
