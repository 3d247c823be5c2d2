package alerts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidCondition is returned when a condition fails validation at
// construction or edit time. It is never persisted.
var ErrInvalidCondition = errors.New("invalid condition")

// Kind identifies the trigger rule variant of a condition
type Kind string

const (
	KindPriceAbove         Kind = "price_above"
	KindPriceBelow         Kind = "price_below"
	KindPriceChangePercent Kind = "price_change_percent"
	KindVolumeSpikePercent Kind = "volume_spike_percent"
	KindNewsMention        Kind = "news_mention"
)

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// ValidKinds returns all recognized condition kinds
func ValidKinds() []Kind {
	return []Kind{
		KindPriceAbove,
		KindPriceBelow,
		KindPriceChangePercent,
		KindVolumeSpikePercent,
		KindNewsMention,
	}
}

// Condition is an immutable, validated trigger rule. Conditions are
// persisted as a generic kind/value string pair; the raw operand is kept
// verbatim so Encode round-trips exactly what was saved. Edits replace a
// condition wholesale, there is no partial mutation.
type Condition struct {
	kind      Kind
	threshold decimal.Decimal
	keyword   string
	raw       string
}

// ParseCondition validates a persisted or submitted kind/value pair and
// constructs the typed condition.
func ParseCondition(kind, value string) (Condition, error) {
	k := Kind(kind)
	switch k {
	case KindPriceAbove, KindPriceBelow, KindPriceChangePercent, KindVolumeSpikePercent:
		threshold, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return Condition{}, fmt.Errorf("%w: %s requires a numeric operand, got %q", ErrInvalidCondition, kind, value)
		}
		return Condition{kind: k, threshold: threshold, raw: value}, nil

	case KindNewsMention:
		if strings.TrimSpace(value) == "" {
			return Condition{}, fmt.Errorf("%w: news_mention requires a non-empty keyword", ErrInvalidCondition)
		}
		return Condition{kind: k, keyword: value, raw: value}, nil

	default:
		return Condition{}, fmt.Errorf("%w: unrecognized kind %q", ErrInvalidCondition, kind)
	}
}

// Kind returns the condition's variant tag
func (c Condition) Kind() Kind {
	return c.kind
}

// Threshold returns the numeric operand for price/volume kinds
func (c Condition) Threshold() decimal.Decimal {
	return c.threshold
}

// Keyword returns the operand for news_mention conditions
func (c Condition) Keyword() string {
	return c.keyword
}

// Encode returns the persisted representation. The operand string is the
// exact bytes the condition was parsed from, so decode(encode(c)) == c
// with no numeric coercion in between.
func (c Condition) Encode() (kind, value string) {
	return string(c.kind), c.raw
}

// Describe returns a human-readable summary for notifications
func (c Condition) Describe() string {
	switch c.kind {
	case KindPriceAbove:
		return fmt.Sprintf("price above %s", c.raw)
	case KindPriceBelow:
		return fmt.Sprintf("price below %s", c.raw)
	case KindPriceChangePercent:
		if c.threshold.IsNegative() {
			return fmt.Sprintf("price down %s%% or more", c.threshold.Abs())
		}
		return fmt.Sprintf("price up %s%% or more", c.raw)
	case KindVolumeSpikePercent:
		return fmt.Sprintf("volume spike of %s%% or more", c.raw)
	case KindNewsMention:
		return fmt.Sprintf("news mentioning %q", c.keyword)
	}
	return string(c.kind)
}
