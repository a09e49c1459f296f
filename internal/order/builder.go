package order

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults are the business defaults applied when the caller omits display fields.
type Defaults struct {
	Amount                  decimal.Decimal
	Currency                string
	Description             string
	VerificationDescription string
	Customer                Customer
}

// DemoDefaults mirrors the values the demo pages rely on.
func DemoDefaults() Defaults {
	return Defaults{
		Amount:                  decimal.NewFromInt(100),
		Currency:                "EUR",
		Description:             "Test Order",
		VerificationDescription: "Card Verification",
		Customer: Customer{
			Identifier: "customer-12333",
			FirstName:  "John",
			LastName:   "Doe",
			Country:    "RO",
			City:       "Bucharest",
			Email:      "john.doe@test.com",
		},
	}
}

// Input holds the optional caller-supplied fields of an order.
type Input struct {
	Amount      *Amount
	Currency    string
	Description string
	PublicKey   string
	Customer    *Customer
	BaseURL     string
}

// Builder assembles fully populated OrderRequests. Order ids are derived from
// the clock in milliseconds and never repeat within a Builder.
type Builder struct {
	Defaults Defaults
	Now      func() time.Time

	last atomic.Int64
}

// NewBuilder returns a Builder using the demo defaults and the wall clock.
func NewBuilder() *Builder {
	return &Builder{Defaults: DemoDefaults(), Now: time.Now}
}

// Checkout builds an authAndCapture purchase whose widget returns to /inline-checkout.
func (b *Builder) Checkout(in Input) OrderRequest {
	amount := NewAmount(b.Defaults.Amount)
	if in.Amount != nil {
		amount = *in.Amount
	}
	return OrderRequest{
		PublicKey: in.PublicKey,
		Customer:  b.customer(in.Customer),
		Order: Order{
			OrderID:     fmt.Sprintf("order-%d", b.nextID()),
			Description: firstNonEmpty(in.Description, b.Defaults.Description),
			Type:        TypePurchase,
			Amount:      amount,
			Currency:    firstNonEmpty(in.Currency, b.Defaults.Currency),
		},
		CardTransactionMode: ModeAuthAndCapture,
		BackURL:             joinURL(in.BaseURL, "/inline-checkout"),
	}
}

// Verification builds a zero-amount verifyCard order. Any supplied amount is ignored.
func (b *Builder) Verification(in Input) OrderRequest {
	return OrderRequest{
		PublicKey: in.PublicKey,
		Customer:  b.customer(in.Customer),
		Order: Order{
			OrderID:     fmt.Sprintf("verify-card-%d", b.nextID()),
			Description: firstNonEmpty(in.Description, b.Defaults.VerificationDescription),
			Type:        TypePurchase,
			Amount:      AmountFromInt(0),
			Currency:    firstNonEmpty(in.Currency, b.Defaults.Currency),
		},
		CardTransactionMode: ModeVerifyCard,
		BackURL:             joinURL(in.BaseURL, "/verify-card"),
	}
}

func (b *Builder) customer(c *Customer) Customer {
	if c == nil || strings.TrimSpace(c.Identifier) == "" {
		return b.Defaults.Customer
	}
	return *c
}

func (b *Builder) nextID() int64 {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	candidate := now().UnixMilli()
	for {
		prev := b.last.Load()
		next := candidate
		if next <= prev {
			next = prev + 1
		}
		if b.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// BaseURLResolver picks the absolute origin the widget redirects back to.
type BaseURLResolver struct {
	BaseURL   string
	VercelURL string
	VitePort  string
}

// Resolve returns BASE_URL when set, then the Vercel deployment URL using the
// forwarded scheme, then the local Vite dev server.
func (r BaseURLResolver) Resolve(forwardedProto string) string {
	if base := strings.TrimSpace(r.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	if vercel := strings.TrimSpace(r.VercelURL); vercel != "" {
		proto := strings.TrimSpace(strings.Split(forwardedProto, ",")[0])
		if proto == "" {
			proto = "http"
		}
		return fmt.Sprintf("%s://%s", proto, strings.TrimRight(vercel, "/"))
	}
	port := strings.TrimSpace(r.VitePort)
	if port == "" {
		port = "5173"
	}
	return "http://localhost:" + port
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
