package svg

// ValidationError reports SVG input that must not reach a renderer:
// oversized payloads and markup that is not a well-formed SVG document.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return "invalid svg: " + e.Reason + ": " + e.Err.Error()
	}
	return "invalid svg: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
