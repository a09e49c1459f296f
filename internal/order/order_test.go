package order_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/xmoney-playground/internal/order"
)

func fixedBuilder(at time.Time) *order.Builder {
	b := order.NewBuilder()
	b.Now = func() time.Time { return at }
	return b
}

func TestCheckoutAppliesDefaults(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	b := fixedBuilder(at)

	req := b.Checkout(order.Input{PublicKey: "pk_test_1", BaseURL: "http://localhost:5173"})
	require.Equal(t, "order-1700000000000", req.Order.OrderID)
	require.Equal(t, "Test Order", req.Order.Description)
	require.Equal(t, "EUR", req.Order.Currency)
	require.True(t, req.Order.Amount.Equal(decimal.NewFromInt(100)))
	require.Equal(t, order.TypePurchase, req.Order.Type)
	require.Equal(t, order.ModeAuthAndCapture, req.CardTransactionMode)
	require.Equal(t, "http://localhost:5173/inline-checkout", req.BackURL)
	require.Equal(t, "customer-12333", req.Customer.Identifier)
	require.NoError(t, req.Validate())
}

func TestCheckoutKeepsCallerValues(t *testing.T) {
	b := fixedBuilder(time.UnixMilli(1))
	amount := order.NewAmount(decimal.RequireFromString("49.99"))
	customer := &order.Customer{Identifier: "cust-9", FirstName: "Ana", Country: "RO", Email: "ana@test.com"}

	req := b.Checkout(order.Input{
		Amount:      &amount,
		Currency:    "RON",
		Description: "Cart",
		PublicKey:   "pk_live_42",
		Customer:    customer,
		BaseURL:     "https://shop.example.com/",
	})
	require.Equal(t, "49.99", req.Order.Amount.String())
	require.Equal(t, "RON", req.Order.Currency)
	require.Equal(t, "Cart", req.Order.Description)
	require.Equal(t, "cust-9", req.Customer.Identifier)
	require.Equal(t, "https://shop.example.com/inline-checkout", req.BackURL)
	require.NoError(t, req.Validate())
}

func TestVerificationForcesZeroAmount(t *testing.T) {
	b := fixedBuilder(time.UnixMilli(1700000000000))
	amount := order.AmountFromInt(250)

	req := b.Verification(order.Input{Amount: &amount, PublicKey: "pk_test_1", BaseURL: "http://localhost:5173"})
	require.True(t, req.Order.Amount.IsZero())
	require.Equal(t, order.ModeVerifyCard, req.CardTransactionMode)
	require.Equal(t, "verify-card-1700000000000", req.Order.OrderID)
	require.Equal(t, "Card Verification", req.Order.Description)
	require.Equal(t, "http://localhost:5173/verify-card", req.BackURL)
	require.NoError(t, req.Validate())
}

func TestOrderIDsAreUniqueUnderConcurrency(t *testing.T) {
	b := fixedBuilder(time.UnixMilli(1700000000000))
	const n = 64
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- b.Checkout(order.Input{PublicKey: "pk_test_1"}).Order.OrderID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]struct{}{}
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	require.Len(t, seen, n)
}

func TestValidateRejectsBrokenInvariants(t *testing.T) {
	valid := func() order.OrderRequest {
		return fixedBuilder(time.UnixMilli(1)).Checkout(order.Input{PublicKey: "pk_test_1", BaseURL: "http://localhost:5173"})
	}
	cases := map[string]struct {
		mutate func(*order.OrderRequest)
		field  string
	}{
		"negative amount": {func(o *order.OrderRequest) { o.Order.Amount = order.AmountFromInt(-1) }, "order.amount"},
		"too many digits": {func(o *order.OrderRequest) { o.Order.Amount = order.NewAmount(decimal.RequireFromString("1.005")) }, "order.amount"},
		"yen fraction": {func(o *order.OrderRequest) {
			o.Order.Currency = "JPY"
			o.Order.Amount = order.NewAmount(decimal.RequireFromString("1.5"))
		}, "order.amount"},
		"bad currency":   {func(o *order.OrderRequest) { o.Order.Currency = "EURO" }, "order.currency"},
		"bad public key": {func(o *order.OrderRequest) { o.PublicKey = "sk_test_1" }, "publicKey"},
		"missing id":     {func(o *order.OrderRequest) { o.Order.OrderID = "" }, "order.orderId"},
		"relative url":   {func(o *order.OrderRequest) { o.BackURL = "/inline-checkout" }, "backUrl"},
		"bad mode":       {func(o *order.OrderRequest) { o.CardTransactionMode = "refund" }, "cardTransactionMode"},
		"bad email":      {func(o *order.OrderRequest) { o.Customer.Email = "nope" }, "customer.email"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			o := valid()
			tc.mutate(&o)
			err := o.Validate()
			require.Error(t, err)
			var vErr *order.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestValidateAcceptsThreeDigitCurrencies(t *testing.T) {
	o := fixedBuilder(time.UnixMilli(1)).Checkout(order.Input{PublicKey: "pk_test_1", BaseURL: "http://localhost:5173"})
	o.Order.Currency = "KWD"
	o.Order.Amount = order.NewAmount(decimal.RequireFromString("1.005"))
	require.NoError(t, o.Validate())
	require.Equal(t, int32(3), order.MinorUnits("kwd"))
	require.Equal(t, int32(2), order.MinorUnits("EUR"))
}

func TestAmountJSON(t *testing.T) {
	cases := map[string]string{
		"100":    "100",
		"100.00": "100",
		"12.50":  "12.5",
		"0.01":   "0.01",
		"0":      "0",
	}
	for in, want := range cases {
		a, err := order.ParseAmount(in)
		require.NoError(t, err)
		data, err := json.Marshal(a)
		require.NoError(t, err)
		require.Equal(t, want, string(data))
	}

	var fromNumber, fromString order.Amount
	require.NoError(t, json.Unmarshal([]byte(`49.99`), &fromNumber))
	require.NoError(t, json.Unmarshal([]byte(`"49.99"`), &fromString))
	require.True(t, fromNumber.Equal(fromString.Decimal))
	require.Error(t, json.Unmarshal([]byte(`"abc"`), &fromNumber))
}

func TestBaseURLResolver(t *testing.T) {
	require.Equal(t, "https://demo.example.com", order.BaseURLResolver{BaseURL: "https://demo.example.com/", VercelURL: "x.vercel.app"}.Resolve("https"))
	require.Equal(t, "https://x.vercel.app", order.BaseURLResolver{VercelURL: "x.vercel.app"}.Resolve("https"))
	require.Equal(t, "http://x.vercel.app", order.BaseURLResolver{VercelURL: "x.vercel.app"}.Resolve(""))
	require.Equal(t, "https://x.vercel.app", order.BaseURLResolver{VercelURL: "x.vercel.app"}.Resolve("https, http"))
	require.Equal(t, "http://localhost:5173", order.BaseURLResolver{}.Resolve(""))
	require.Equal(t, "http://localhost:3000", order.BaseURLResolver{VitePort: "3000"}.Resolve(""))
	require.True(t, strings.HasPrefix(order.BaseURLResolver{}.Resolve("https"), "http://"))
}
