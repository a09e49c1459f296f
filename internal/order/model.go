package order

import (
	"github.com/shopspring/decimal"
)

// Type enumerates the order types accepted by the payment form.
type Type string

const (
	// TypePurchase is the only order type the hosted form supports.
	TypePurchase Type = "purchase"
)

// CardTransactionMode selects what the remote API does with the card.
type CardTransactionMode string

const (
	// ModeAuthAndCapture authorises and captures funds in one step.
	ModeAuthAndCapture CardTransactionMode = "authAndCapture"
	// ModeAuthOnly authorises without capturing.
	ModeAuthOnly CardTransactionMode = "authOnly"
	// ModeVerifyCard performs a zero-value verification and saves the card.
	ModeVerifyCard CardTransactionMode = "verifyCard"
)

// OrderRequest is the document signed and handed to the payment widget.
// Field order here is the serialisation order of the signed payload.
type OrderRequest struct {
	PublicKey           string              `json:"publicKey" validate:"required,publickey"`
	Customer            Customer            `json:"customer"`
	Order               Order               `json:"order"`
	CardTransactionMode CardTransactionMode `json:"cardTransactionMode" validate:"required,oneof=authAndCapture authOnly verifyCard"`
	BackURL             string              `json:"backUrl" validate:"required,url"`
}

// Customer identifies the payer. Address fields beyond country and city are optional.
type Customer struct {
	Identifier string `json:"identifier" validate:"required"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Country    string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	ZipCode    string `json:"zipCode,omitempty"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email" validate:"omitempty,email"`
}

// Order carries the merchant side of the transaction.
type Order struct {
	OrderID     string `json:"orderId" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
	Type        Type   `json:"type" validate:"required,oneof=purchase"`
	Amount      Amount `json:"amount" validate:"-"`
	Currency    string `json:"currency" validate:"required,iso4217"`
}

// Amount is a decimal money value that serialises as a bare JSON number with
// trailing fraction zeros removed (100, 12.5, 0.01).
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// AmountFromInt builds an amount from a whole number of major units.
func AmountFromInt(v int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(v)}
}

// ParseAmount parses a decimal string such as "12.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Decimal: d}, nil
}

// MarshalJSON writes the amount as an unquoted number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}
