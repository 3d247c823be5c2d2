package alerts

import (
	"strings"
	"time"

	"marketpulse_backend/services/marketdata"

	"github.com/shopspring/decimal"
)

// Evidence captures the snapshot values that produced a trigger
type Evidence struct {
	Symbol        string    `json:"symbol"`
	Condition     string    `json:"condition"`
	Operand       string    `json:"operand"`
	LastPrice     string    `json:"last_price,omitempty"`
	PrevClose     string    `json:"prev_close,omitempty"`
	ChangePercent string    `json:"change_percent,omitempty"`
	VolumeRatio   string    `json:"volume_ratio,omitempty"`
	Headline      string    `json:"headline,omitempty"`
	AsOf          time.Time `json:"as_of"`
}

// Outcome is the result of one evaluation pass for one alert
type Outcome struct {
	SatisfiedNow bool
	ShouldFire   bool
	// Indeterminate marks a snapshot that lacks the reference value the
	// kind needs (zero previous close, zero volume baseline, no headline
	// set). The caller must skip the alert and leave its previous
	// satisfaction state untouched, exactly as for a snapshot outage.
	Indeterminate bool
	Evidence      Evidence
}

var hundred = decimal.NewFromInt(100)

// Evaluate decides whether a condition is satisfied by the snapshot and
// whether a notification should fire. Firing is edge-triggered: ShouldFire
// is true only on the transition from not-satisfied to satisfied, so a
// condition that stays true across cycles fires once per genuine crossing.
// Pure function, safe for concurrent use.
func Evaluate(cond Condition, snap *marketdata.Snapshot, prevSatisfied bool) Outcome {
	kind, operand := cond.Encode()
	out := Outcome{
		Evidence: Evidence{
			Symbol:    snap.Symbol,
			Condition: kind,
			Operand:   operand,
			AsOf:      snap.AsOf,
		},
	}

	switch cond.Kind() {
	case KindPriceAbove:
		out.SatisfiedNow = snap.LastPrice.GreaterThan(cond.Threshold())
		out.Evidence.LastPrice = snap.LastPrice.String()

	case KindPriceBelow:
		out.SatisfiedNow = snap.LastPrice.LessThan(cond.Threshold())
		out.Evidence.LastPrice = snap.LastPrice.String()

	case KindPriceChangePercent:
		// A missing previous close is not "the price did not move"
		if snap.PrevClose.IsZero() {
			out.Indeterminate = true
			return out
		}
		change := snap.LastPrice.Sub(snap.PrevClose).Div(snap.PrevClose).Mul(hundred)
		delta := cond.Threshold()
		// Negative delta means "fell by at least |delta| percent"
		if delta.IsNegative() {
			out.SatisfiedNow = change.LessThanOrEqual(delta)
		} else {
			out.SatisfiedNow = change.GreaterThanOrEqual(delta)
		}
		out.Evidence.LastPrice = snap.LastPrice.String()
		out.Evidence.PrevClose = snap.PrevClose.String()
		out.Evidence.ChangePercent = change.Round(4).String()

	case KindVolumeSpikePercent:
		// A missing volume baseline is not "volume did not spike"
		if snap.VolumeRatio.IsZero() {
			out.Indeterminate = true
			return out
		}
		increase := snap.VolumeRatio.Sub(decimal.NewFromInt(1)).Mul(hundred)
		out.SatisfiedNow = increase.GreaterThanOrEqual(cond.Threshold())
		out.Evidence.VolumeRatio = snap.VolumeRatio.Round(4).String()

	case KindNewsMention:
		// A nil headline set means no headline source was wired this
		// cycle; an empty non-nil set means the source answered with
		// nothing recent.
		if snap.Headlines == nil {
			out.Indeterminate = true
			return out
		}
		keyword := strings.ToLower(cond.Keyword())
		for _, headline := range snap.Headlines {
			if strings.Contains(strings.ToLower(headline), keyword) {
				out.SatisfiedNow = true
				out.Evidence.Headline = headline
				break
			}
		}
	}

	out.ShouldFire = out.SatisfiedNow && !prevSatisfied
	return out
}
