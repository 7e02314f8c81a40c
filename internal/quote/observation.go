package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeSource names where an observation's timestamp came from.
type TimeSource string

const (
	// TimeFromPayload means the provider body carried the timestamp.
	TimeFromPayload TimeSource = "payload"
	// TimeFromHeader means the HTTP Date response header was used.
	TimeFromHeader TimeSource = "header"
	// TimeFromLocal means neither was available and capture time was used.
	TimeFromLocal TimeSource = "local"
)

// Observation is one timestamped price sample.
//
// Value is invalid when the provider omitted the price (Raw is empty) or sent
// something that does not parse as a number (Raw holds what was received).
// Observations are passed by value and never modified after creation.
type Observation struct {
	Value      decimal.NullDecimal
	Raw        string
	ObservedAt time.Time
	TimeSource TimeSource
}

// NewObservation builds an observation from a known numeric value.
func NewObservation(value decimal.Decimal, observedAt time.Time) Observation {
	return Observation{
		Value:      decimal.NewNullDecimal(value),
		Raw:        value.String(),
		ObservedAt: observedAt,
		TimeSource: TimeFromLocal,
	}
}

// ParseObservation builds an observation from the textual form of a price.
// An unparsable value is kept as Raw so the validator can reject it.
func ParseObservation(raw string, observedAt time.Time, source TimeSource) Observation {
	obs := Observation{Raw: raw, ObservedAt: observedAt, TimeSource: source}
	if raw == "" {
		return obs
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		obs.Value = decimal.NewNullDecimal(d)
	}
	return obs
}

// Price returns the numeric value; callers must have validated the observation.
func (o Observation) Price() decimal.Decimal {
	return o.Value.Decimal
}
