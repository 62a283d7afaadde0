package ingest

// ValidationError is a caller-at-fault ingestion failure with a stable code.
// No event is created when one is returned.
type ValidationError struct {
	Code string
}

func (e *ValidationError) Error() string {
	return e.Code
}

var (
	ErrInvalidMode     = &ValidationError{Code: "invalid_mode"}
	ErrInvalidPayload  = &ValidationError{Code: "invalid_payload"}
	ErrInvalidEventKey = &ValidationError{Code: "invalid_event_key"}
	ErrUnknownEventKey = &ValidationError{Code: "unknown_event_key"}
	ErrSourceNotMapped = &ValidationError{Code: "source_not_mapped"}
)
