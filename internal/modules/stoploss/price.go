// Package stoploss implements the trailing stop: per-currency floor tracking,
// breach evaluation and the polling loop that reconciles both.
package stoploss

import "fmt"

// Price is an optional price level. The zero value is unset.
type Price struct {
	Value float64
	Valid bool
}

// Some returns a set price
func Some(v float64) Price {
	return Price{Value: v, Valid: true}
}

// Unset returns an unset price
func Unset() Price {
	return Price{}
}

// Above reports whether p is set and strictly greater than v
func (p Price) Above(v float64) bool {
	return p.Valid && p.Value > v
}

// Max returns the larger of p and q; an unset operand is ignored
func (p Price) Max(q Price) Price {
	switch {
	case !p.Valid:
		return q
	case !q.Valid:
		return p
	case q.Value > p.Value:
		return q
	}
	return p
}

func (p Price) String() string {
	if !p.Valid {
		return "unset"
	}
	return fmt.Sprintf("%.6g", p.Value)
}
