package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liamcoop/startrescue/patient"
)

// Color is a START triage category.
type Color int

const (
	Green Color = iota + 1
	Yellow
	Red
	Black
)

// Colors lists every triage category in display order.
var Colors = []Color{Green, Yellow, Red, Black}

// ErrUnknownColor is returned when a label does not name a triage color.
var ErrUnknownColor = errors.New("unknown triage color")

// Label returns the canonical display label.
func (c Color) Label() string {
	switch c {
	case Green:
		return "GREEN"
	case Yellow:
		return "YELLOW"
	case Red:
		return "RED"
	case Black:
		return "BLACK"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether c is one of the four triage colors.
func (c Color) Valid() bool {
	return c >= Green && c <= Black
}

func (c Color) String() string {
	return c.Label()
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Label()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseColor maps a label (case-insensitive) to its Color.
func ParseColor(label string) (Color, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "GREEN":
		return Green, nil
	case "YELLOW":
		return Yellow, nil
	case "RED":
		return Red, nil
	case "BLACK":
		return Black, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownColor, label)
	}
}

// Rule is one row of the START protocol table. Rows are evaluated in order
// and the first whose Expression is true decides the color.
type Rule struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Color      Color  `json:"color"`

	rationale func(p patient.Patient) string
}

// Classification is the graded outcome for a patient.
type Classification struct {
	Color     Color  `json:"color"`
	RuleID    string `json:"ruleId"`
	Rationale string `json:"rationale"`
}
