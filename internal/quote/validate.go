package quote

// Validate gates observations before they are appended. It returns the same
// observation when the value is present, numeric and strictly positive.
func Validate(obs Observation) (Observation, error) {
	if !obs.Value.Valid {
		if obs.Raw == "" {
			return Observation{}, &ValidationError{Field: "value", Reason: "is missing"}
		}
		return Observation{}, &ValidationError{Field: "value", Reason: "is not numeric: " + obs.Raw}
	}
	if obs.Value.Decimal.Sign() <= 0 {
		return Observation{}, &ValidationError{Field: "value", Reason: "must be greater than zero, got " + obs.Value.Decimal.String()}
	}
	if obs.ObservedAt.IsZero() {
		return Observation{}, &ValidationError{Field: "observed_at", Reason: "is missing"}
	}
	return obs, nil
}
