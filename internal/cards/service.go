package cards

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/noah-isme/xmoney-playground/internal/common"
	"github.com/noah-isme/xmoney-playground/internal/credentials"
	"github.com/noah-isme/xmoney-playground/internal/obs"
	"github.com/noah-isme/xmoney-playground/internal/xmoney"
)

// API is the subset of the REST client the proxy needs.
type API interface {
	FindCustomers(ctx context.Context, auth xmoney.Auth, identifier string) ([]xmoney.Customer, error)
	ListCards(ctx context.Context, auth xmoney.Auth, customerID xmoney.ID) ([]xmoney.Card, error)
	DeleteCard(ctx context.Context, auth xmoney.Auth, cardID xmoney.ID) (json.RawMessage, error)
}

// Service resolves customers and relays card calls to the REST API.
type Service struct {
	API      API
	Store    credentials.Store
	Fallback bool
}

// ListResult is the success body of get-cards.
type ListResult struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    []xmoney.Card `json:"data"`
}

// List finds the customer by identifier and returns their saved cards.
func (s *Service) List(ctx context.Context, identifier string, auth xmoney.Auth) (ListResult, error) {
	auth, err := s.resolveAuth(ctx, auth)
	if err != nil {
		return ListResult{}, err
	}
	if strings.TrimSpace(identifier) == "" || strings.TrimSpace(auth.APIKey) == "" {
		return ListResult{}, common.Validation("Missing customer identifier or API key", nil)
	}

	customers, err := s.API.FindCustomers(ctx, auth, identifier)
	if err != nil {
		obs.IncCardProxy("get_cards", "upstream_error")
		return ListResult{}, mapUpstream(err)
	}
	if len(customers) == 0 {
		obs.IncCardProxy("get_cards", "not_found")
		return ListResult{}, common.NotFound("Customer not found")
	}

	found, err := s.API.ListCards(ctx, auth, customers[0].ID)
	if err != nil {
		obs.IncCardProxy("get_cards", "upstream_error")
		return ListResult{}, mapUpstream(err)
	}
	obs.IncCardProxy("get_cards", "ok")
	return ListResult{Code: http.StatusOK, Message: "Success", Data: found}, nil
}

// Delete removes a card and returns the upstream body unchanged.
func (s *Service) Delete(ctx context.Context, cardID xmoney.ID, auth xmoney.Auth) (json.RawMessage, error) {
	auth, err := s.resolveAuth(ctx, auth)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cardID.String()) == "" || strings.TrimSpace(auth.APIKey) == "" {
		return nil, common.Validation("Missing card ID or API key", nil)
	}
	body, err := s.API.DeleteCard(ctx, auth, cardID)
	if err != nil {
		obs.IncCardProxy("delete_card", "upstream_error")
		return nil, mapUpstream(err)
	}
	obs.IncCardProxy("delete_card", "ok")
	return body, nil
}

// resolveAuth fills a missing api key from the credential store when enabled.
// The stored environment then decides the host.
func (s *Service) resolveAuth(ctx context.Context, auth xmoney.Auth) (xmoney.Auth, error) {
	if !s.Fallback || s.Store == nil || strings.TrimSpace(auth.APIKey) != "" {
		return auth, nil
	}
	stored, err := credentials.Load(ctx, s.Store)
	if err != nil {
		return auth, common.NewAppError(common.CodeInternal, "Internal server error", http.StatusInternalServerError, err)
	}
	return xmoney.Auth{APIKey: stored.APIKey, IsLive: stored.IsLive}, nil
}

func mapUpstream(err error) error {
	if ue, ok := xmoney.AsUpstream(err); ok {
		return common.Upstream(ue.Status, ue.Message, ue.Body)
	}
	return common.NewAppError(common.CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
