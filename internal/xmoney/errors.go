package xmoney

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UpstreamError is a non-2xx answer from the REST API.
type UpstreamError struct {
	Status  int
	Message string
	// Body is the decoded error body, or an empty object when it was not JSON.
	Body any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("xmoney: upstream status %d: %s", e.Status, e.Message)
}

// AsUpstream unwraps an UpstreamError from err.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

func newUpstreamError(status int, body []byte, fallback string) *UpstreamError {
	var decoded any = map[string]any{}
	message := fallback
	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil && parsed != nil {
		decoded = parsed
		if obj, ok := parsed.(map[string]any); ok {
			if m, ok := obj["message"].(string); ok && m != "" {
				message = m
			}
		}
	}
	return &UpstreamError{Status: status, Message: message, Body: decoded}
}
