package signing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is matched by every KeyError.
	ErrInvalidKey = errors.New("signing: invalid api key")
	// ErrChecksumMismatch is returned by Verify when the checksum does not match.
	ErrChecksumMismatch = errors.New("signing: checksum mismatch")
	// ErrMalformedPayload is returned when a payload is not base64 encoded JSON.
	ErrMalformedPayload = errors.New("signing: malformed payload")
)

// KeyError reports an empty or malformed api key. It is a caller precondition
// violation rather than a degenerate checksum.
type KeyError struct {
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("signing: invalid api key: %s", e.Reason)
}

// Is makes errors.Is(err, ErrInvalidKey) hold for any KeyError.
func (e *KeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

// SerializationError wraps a failure to canonicalise the order.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("signing: serialise order: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
