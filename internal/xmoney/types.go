package xmoney

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a numeric identifier that tolerates being sent as a JSON string.
type ID string

// UnmarshalJSON accepts 123 and "123".
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("xmoney: id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integral ids as numbers and anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Customer is a merchant customer record.
type Customer struct {
	ID                ID     `json:"id"`
	SiteID            ID     `json:"siteId,omitempty"`
	Identifier        string `json:"identifier"`
	FirstName         string `json:"firstName,omitempty"`
	LastName          string `json:"lastName,omitempty"`
	Country           string `json:"country,omitempty"`
	State             string `json:"state,omitempty"`
	City              string `json:"city,omitempty"`
	ZipCode           string `json:"zipCode,omitempty"`
	Address           string `json:"address,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Email             string `json:"email,omitempty"`
	CreationDate      string `json:"creationDate,omitempty"`
	CreationTimestamp int64  `json:"creationTimestamp,omitempty"`
}

// CardType is the card scheme.
type CardType string

const (
	CardTypeVisa       CardType = "visa"
	CardTypeMastercard CardType = "mastercard"
	CardTypeMaestro    CardType = "maestro"
)

// CardStatus is the lifecycle state of a saved card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "active"
	CardStatusDeleted CardStatus = "deleted"
)

// BinInfo describes the issuing bank of a card.
type BinInfo struct {
	Bin         int64  `json:"bin"`
	Brand       string `json:"brand"`
	Type        string `json:"type"`
	Level       string `json:"level"`
	CountryCode string `json:"countryCode"`
	Bank        string `json:"bank"`
}

// Card is a saved, tokenised card.
type Card struct {
	ID          ID         `json:"id"`
	CustomerID  ID         `json:"customerId"`
	Type        CardType   `json:"type"`
	CardNumber  string     `json:"cardNumber"`
	ExpiryMonth string     `json:"expiryMonth"`
	ExpiryYear  string     `json:"expiryYear"`
	NameOnCard  string     `json:"nameOnCard,omitempty"`
	CardStatus  CardStatus `json:"cardStatus,omitempty"`
	BinInfo     *BinInfo   `json:"binInfo,omitempty"`
}

type TransactionType string

const (
	TransactionDeposit       TransactionType = "deposit"
	TransactionRefund        TransactionType = "refund"
	TransactionCredit        TransactionType = "credit"
	TransactionChargeback    TransactionType = "chargeback"
	TransactionRepresentment TransactionType = "representment"
	TransactionVerifyCard    TransactionType = "verify-card"
)

type TransactionMethod string

const (
	MethodCard     TransactionMethod = "card"
	MethodWallet   TransactionMethod = "wallet"
	MethodTransfer TransactionMethod = "transfer"
)

type TransactionStatus string

const (
	StatusStart                TransactionStatus = "start"
	StatusCompleteOK           TransactionStatus = "complete-ok"
	StatusCancelOK             TransactionStatus = "cancel-ok"
	StatusRefundOK             TransactionStatus = "refund-ok"
	StatusVoidOK               TransactionStatus = "void-ok"
	StatusChargeBack           TransactionStatus = "charge-back"
	StatusChargeBackInProgress TransactionStatus = "charge-back-in-progress"
	StatusCompleteFailed       TransactionStatus = "complete-failed"
	StatusInProgress           TransactionStatus = "in-progress"
	Status3DPending            TransactionStatus = "3d-pending"
	StatusUncertain            TransactionStatus = "uncertain"
)

// Succeeded reports whether the transaction finished with funds moved or the card verified.
func (s TransactionStatus) Succeeded() bool {
	return s == StatusCompleteOK
}

// TransactionDetails is delivered by the widget on payment completion.
type TransactionDetails struct {
	ID                    ID                `json:"id"`
	SiteID                ID                `json:"siteId"`
	OrderID               ID                `json:"orderId"`
	CustomerID            ID                `json:"customerId"`
	CustomerData          *Customer         `json:"customerData,omitempty"`
	TransactionType       TransactionType   `json:"transactionType"`
	TransactionMethod     TransactionMethod `json:"transactionMethod"`
	TransactionStatus     TransactionStatus `json:"transactionStatus"`
	IP                    *string           `json:"ip"`
	Amount                string            `json:"amount"`
	Currency              string            `json:"currency"`
	AmountInEUR           string            `json:"amountInEur"`
	Description           string            `json:"description"`
	CreationDate          string            `json:"creationDate"`
	CardProviderName      string            `json:"cardProviderName"`
	CardType              string            `json:"cardType"`
	CardNumber            string            `json:"cardNumber"`
	CardExpiryDate        string            `json:"cardExpiryDate"`
	CardHolderName        *string           `json:"cardHolderName"`
	Card                  *Card             `json:"card,omitempty"`
	Reason                *string           `json:"reason,omitempty"`
	ParentTransactionID   *ID               `json:"parentTransactionId,omitempty"`
	RelatedTransactionIDs []ID              `json:"relatedTransactionIds,omitempty"`
}

// MatchStatus is the outcome of a cardholder name verification.
type MatchStatus string

const (
	MatchMatched        MatchStatus = "MATCHED"
	MatchNotMatched     MatchStatus = "NOT_MATCHED"
	MatchNotVerified    MatchStatus = "NOT_VERIFIED"
	MatchPartialMatched MatchStatus = "PARTIAL_MATCHED"
	MatchNotSupported   MatchStatus = "NOT_SUPPORTED"
)

// Valid reports whether s is one of the known statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchMatched, MatchNotMatched, MatchNotVerified, MatchPartialMatched, MatchNotSupported:
		return true
	}
	return false
}

// CardHolderVerificationResult carries per-name match statuses.
type CardHolderVerificationResult struct {
	Status           MatchStatus `json:"status"`
	FirstNameStatus  MatchStatus `json:"firstNameStatus,omitempty"`
	MiddleNameStatus MatchStatus `json:"middleNameStatus,omitempty"`
	LastNameStatus   MatchStatus `json:"lastNameStatus,omitempty"`
}

// envelope is the standard response wrapper of the REST API.
type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}
