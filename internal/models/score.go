package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ScorePlaces is the fixed number of decimal places stored for every score.
const ScorePlaces = 2

// scoreLimit is the exclusive magnitude bound of NUMERIC(5,2).
var scoreLimit = decimal.NewFromInt(1000)

// Score is an exact fixed-point value backed by NUMERIC(5,2). It serialises as a JSON
// number with two decimals and accepts either numbers or numeric strings on input.
type Score struct {
	decimal.Decimal
}

// NewScore parses a decimal string into a Score.
func NewScore(value string) (Score, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Score{}, fmt.Errorf("parse score %q: %w", value, err)
	}
	return Score{Decimal: d}, nil
}

// MustScore is NewScore for literals known to be valid.
func MustScore(value string) Score {
	s, err := NewScore(value)
	if err != nil {
		panic(err)
	}
	return s
}

// ScoreFromDecimal wraps d.
func ScoreFromDecimal(d decimal.Decimal) Score {
	return Score{Decimal: d}
}

// Validate enforces the storage precision: at most 5 digits, 2 of them after the point.
func (s Score) Validate() error {
	if !s.Equal(s.Truncate(ScorePlaces)) {
		return fmt.Errorf("ensure that there are no more than %d decimal places", ScorePlaces)
	}
	if s.Abs().GreaterThanOrEqual(scoreLimit) {
		return fmt.Errorf("ensure that there are no more than 3 digits before the decimal point")
	}
	return nil
}

// String renders the score with exactly two decimals.
func (s Score) String() string {
	return s.StringFixed(ScorePlaces)
}

// MarshalJSON writes an unquoted number such as 85.50.
func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(s.StringFixed(ScorePlaces)), nil
}

// UnmarshalJSON accepts 85.5, "85.50" or "85".
func (s *Score) UnmarshalJSON(data []byte) error {
	return s.Decimal.UnmarshalJSON(data)
}
