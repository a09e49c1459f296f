package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/xmoney-playground/internal/common"
	"github.com/noah-isme/xmoney-playground/internal/credentials"
	"github.com/noah-isme/xmoney-playground/internal/obs"
	"github.com/noah-isme/xmoney-playground/internal/order"
	"github.com/noah-isme/xmoney-playground/internal/signing"
)

var tracer = otel.Tracer("github.com/noah-isme/xmoney-playground/internal/checkout")

const (
	flowCheckout   = "checkout"
	flowVerifyCard = "verify_card"
)

// Input is the caller-supplied part of a signing request.
type Input struct {
	Amount      *order.Amount   `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	PublicKey   string          `json:"publicKey"`
	APIKey      string          `json:"apiKey"`
	Customer    *order.Customer `json:"customer"`

	// ForwardedProto is the X-Forwarded-Proto header of the incoming request.
	ForwardedProto string `json:"-"`
}

// VerifyResult reports whether a payload/checksum pair was produced with the key.
type VerifyResult struct {
	Valid bool                `json:"valid"`
	Order *order.OrderRequest `json:"order,omitempty"`
}

// Service builds and signs orders for the payment widget.
type Service struct {
	Builder  *order.Builder
	Signer   signing.Signer
	Resolver order.BaseURLResolver
	// Store fills missing keys when Fallback is set.
	Store    credentials.Store
	Fallback bool
}

// Checkout signs an authAndCapture purchase.
func (s *Service) Checkout(ctx context.Context, in Input) (signing.SignedOrder, error) {
	return s.sign(ctx, flowCheckout, in, s.builder().Checkout)
}

// VerifyCard signs a zero-amount card verification.
func (s *Service) VerifyCard(ctx context.Context, in Input) (signing.SignedOrder, error) {
	return s.sign(ctx, flowVerifyCard, in, s.builder().Verification)
}

// Verify checks a payload/checksum pair and decodes the order on success.
func (s *Service) Verify(_ context.Context, payload, checksum, apiKey string) (VerifyResult, error) {
	if strings.TrimSpace(payload) == "" || strings.TrimSpace(checksum) == "" || strings.TrimSpace(apiKey) == "" {
		return VerifyResult{}, common.Validation("Missing payload, checksum or API key", nil)
	}
	err := s.Signer.Verify(payload, checksum, apiKey)
	switch {
	case errors.Is(err, signing.ErrChecksumMismatch):
		obs.IncSignatureCheck("mismatch")
		return VerifyResult{Valid: false}, nil
	case errors.Is(err, signing.ErrMalformedPayload):
		obs.IncSignatureCheck("malformed")
		return VerifyResult{}, common.Validation("Malformed payload", err)
	case errors.Is(err, signing.ErrInvalidKey):
		return VerifyResult{}, common.Validation("Invalid API key", err)
	case err != nil:
		return VerifyResult{}, common.Signing(err)
	}
	decoded, err := signing.DecodePayload(payload)
	if err != nil {
		return VerifyResult{}, common.Validation("Malformed payload", err)
	}
	obs.IncSignatureCheck("valid")
	return VerifyResult{Valid: true, Order: &decoded}, nil
}

func (s *Service) sign(ctx context.Context, flow string, in Input, build func(order.Input) order.OrderRequest) (out signing.SignedOrder, err error) {
	ctx, span := tracer.Start(ctx, "checkout.sign", trace.WithAttributes(attribute.String("order.flow", flow)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sign order")
		}
		span.End()
	}()

	in, err = s.withCredentials(ctx, in)
	if err != nil {
		return signing.SignedOrder{}, err
	}
	if strings.TrimSpace(in.PublicKey) == "" || strings.TrimSpace(in.APIKey) == "" {
		obs.IncSignedOrder(flow, "missing_credentials")
		return signing.SignedOrder{}, common.Validation("Missing credentials", nil)
	}

	req := build(order.Input{
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		PublicKey:   in.PublicKey,
		Customer:    in.Customer,
		BaseURL:     s.Resolver.Resolve(in.ForwardedProto),
	})
	span.SetAttributes(attribute.String("order.id", req.Order.OrderID), attribute.String("order.currency", req.Order.Currency))
	if err := req.Validate(); err != nil {
		obs.IncSignedOrder(flow, "invalid")
		appErr := common.Validation(err.Error(), err)
		var vErr *order.ValidationError
		if errors.As(err, &vErr) {
			appErr.Details = map[string]string{"field": vErr.Field}
		}
		return signing.SignedOrder{}, appErr
	}

	signed, err := s.Signer.Sign(req, in.APIKey)
	if err != nil {
		if errors.Is(err, signing.ErrInvalidKey) {
			obs.IncSignedOrder(flow, "invalid_key")
			return signing.SignedOrder{}, common.Validation("Invalid API key", err)
		}
		obs.IncSignedOrder(flow, "error")
		return signing.SignedOrder{}, common.Signing(err)
	}
	obs.IncSignedOrder(flow, "ok")
	return signed, nil
}

func (s *Service) withCredentials(ctx context.Context, in Input) (Input, error) {
	if !s.Fallback || s.Store == nil {
		return in, nil
	}
	if strings.TrimSpace(in.PublicKey) != "" && strings.TrimSpace(in.APIKey) != "" {
		return in, nil
	}
	stored, err := credentials.Load(ctx, s.Store)
	if err != nil {
		return in, common.NewAppError(common.CodeInternal, "Internal server error", http.StatusInternalServerError, err)
	}
	if strings.TrimSpace(in.PublicKey) == "" {
		in.PublicKey = stored.PublicKey
	}
	if strings.TrimSpace(in.APIKey) == "" {
		if err := stored.Validate(); err != nil && stored.Complete() {
			return in, common.Validation(err.Error(), err)
		}
		in.APIKey = stored.APIKey
	}
	return in, nil
}

var defaultBuilder = order.NewBuilder()

func (s *Service) builder() *order.Builder {
	if s.Builder == nil {
		return defaultBuilder
	}
	return s.Builder
}
