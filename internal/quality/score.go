// Package quality scores event completeness over identity and commerce
// signals. Scoring is a pure function so it can be unit-tested directly.
package quality

import (
	"math"
	"strings"
)

// Flags for each absent weighted signal.
const (
	FlagMissingEmail     = "missing_email"
	FlagMissingPhone     = "missing_phone"
	FlagMissingEventID   = "missing_event_id"
	FlagMissingEventTime = "missing_event_time"
	FlagMissingValue     = "missing_value"
	FlagMissingCurrency  = "missing_currency"
)

const (
	weightEmail     = 0.35
	weightPhone     = 0.35
	weightEventID   = 0.10
	weightEventTime = 0.10
	weightValue     = 0.05
	weightCurrency  = 0.05
)

// Input is the signal set scored for one event.
type Input struct {
	UserAttrs     map[string]any
	CustomAttrs   map[string]any
	ClientEventID string
	EventTime     int64
}

// Score returns a 0-100 completeness score and the flags for every missing
// weighted signal. Flags is nil when all six signals are present.
func Score(in Input) (int, []string) {
	acc := 0.0
	var flags []string

	if nonEmptyString(in.UserAttrs["email"]) {
		acc += weightEmail
	} else {
		flags = append(flags, FlagMissingEmail)
	}

	if nonEmptyString(in.UserAttrs["phone"]) {
		acc += weightPhone
	} else {
		flags = append(flags, FlagMissingPhone)
	}

	if strings.TrimSpace(in.ClientEventID) != "" {
		acc += weightEventID
	} else {
		flags = append(flags, FlagMissingEventID)
	}

	if in.EventTime > 0 {
		acc += weightEventTime
	} else {
		flags = append(flags, FlagMissingEventTime)
	}

	if _, ok := in.CustomAttrs["value"]; ok {
		acc += weightValue
	} else {
		flags = append(flags, FlagMissingValue)
	}

	if nonEmptyString(in.CustomAttrs["currency"]) {
		acc += weightCurrency
	} else {
		flags = append(flags, FlagMissingCurrency)
	}

	if acc > 1.0 {
		acc = 1.0
	}

	return int(math.Round(acc * 100)), flags
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}
