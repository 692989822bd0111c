package fetch

import "fmt"

// TransportError reports a network failure or an unexpected HTTP status.
// The retry policy inspects it; everything else should treat it as opaque.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a body that could not be converted to UTF-8. Decode
// failures are never retried: the bytes arrived fine and will not improve.
type DecodeError struct {
	URL     string
	Charset string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s as %s: %v", e.URL, e.Charset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
