package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/xmoney-playground/internal/xmoney"
)

// ErrInvalidPayload is returned when a payload does not fit its topic.
var ErrInvalidPayload = errors.New("events: invalid payload")

// WidgetError is the onError argument. The widget sends either an object or a
// bare message string.
type WidgetError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts {"code":..,"message":..} and "message".
func (e *WidgetError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = WidgetError{Message: s}
		return nil
	}
	var obj struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Message = obj.Message
	e.Code = ""
	if code := strings.Trim(string(obj.Code), `"`); code != "null" {
		e.Code = code
	}
	return nil
}

// DecodeWidgetError parses an onError payload.
func DecodeWidgetError(payload json.RawMessage) (WidgetError, error) {
	var we WidgetError
	if err := json.Unmarshal(payload, &we); err != nil {
		return WidgetError{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return we, nil
}

// DecodePaymentComplete parses an onPaymentComplete payload.
func DecodePaymentComplete(payload json.RawMessage) (xmoney.TransactionDetails, error) {
	var td xmoney.TransactionDetails
	if err := json.Unmarshal(payload, &td); err != nil {
		return xmoney.TransactionDetails{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return td, nil
}

func validatePayload(topic string, payload json.RawMessage) error {
	switch topic {
	case TopicWidgetError:
		we, err := DecodeWidgetError(payload)
		if err != nil {
			return err
		}
		if strings.TrimSpace(we.Message) == "" {
			return fmt.Errorf("%w: error message is required", ErrInvalidPayload)
		}
	case TopicWidgetPaymentComplete:
		td, err := DecodePaymentComplete(payload)
		if err != nil {
			return err
		}
		if td.ID == "" || td.TransactionStatus == "" {
			return fmt.Errorf("%w: transaction id and status are required", ErrInvalidPayload)
		}
	}
	return nil
}
