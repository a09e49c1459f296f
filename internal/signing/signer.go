package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"regexp"
	"strings"

	"github.com/noah-isme/xmoney-playground/internal/order"
)

// Scheme names the keyed MAC used for the checksum.
type Scheme string

const (
	// SchemeHMACSHA512 is the scheme used by the xMoney SDKs.
	SchemeHMACSHA512 Scheme = "hmac-sha512"
	// SchemeHMACSHA256 is available for verifiers configured with SHA-256.
	SchemeHMACSHA256 Scheme = "hmac-sha256"
)

// Encoding names the text encoding of the checksum bytes.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

var prefixedSecret = regexp.MustCompile(`^sk_(test|live)_`)

// SignedOrder is the transport-safe pair handed to the payment widget.
type SignedOrder struct {
	Payload  string `json:"payload"`
	Checksum string `json:"checksum"`
}

// Signer produces and verifies (payload, checksum) pairs. The zero value uses
// insertion-order JSON, HMAC-SHA512 and base64. A Signer holds no mutable state
// and is safe for concurrent use.
type Signer struct {
	Canonicalizer Canonicalizer
	Scheme        Scheme
	Encoding      Encoding
}

// Default is the Signer used by BuildSignedOrder.
var Default = Signer{}

// BuildSignedOrder canonicalises order, base64-encodes it and computes the
// checksum keyed by apiKey. apiKey is the raw token without its sk_{env}_ prefix.
func BuildSignedOrder(o order.OrderRequest, apiKey string) (SignedOrder, error) {
	return Default.Sign(o, apiKey)
}

// Sign is BuildSignedOrder with this signer's settings.
func (s Signer) Sign(o order.OrderRequest, apiKey string) (SignedOrder, error) {
	if err := checkKey(apiKey); err != nil {
		return SignedOrder{}, err
	}
	canonical, err := s.canonicalizer().Canonicalize(o)
	if err != nil {
		return SignedOrder{}, &SerializationError{Err: err}
	}
	sum, err := s.mac(canonical, apiKey)
	if err != nil {
		return SignedOrder{}, err
	}
	return SignedOrder{
		Payload:  base64.StdEncoding.EncodeToString(canonical),
		Checksum: s.encode(sum),
	}, nil
}

// Verify recomputes the checksum over the decoded payload bytes, as the remote
// API does, and compares it in constant time.
func (s Signer) Verify(payload, checksum, apiKey string) error {
	if err := checkKey(apiKey); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil || !json.Valid(raw) {
		return ErrMalformedPayload
	}
	provided, err := s.decode(strings.TrimSpace(checksum))
	if err != nil {
		return ErrChecksumMismatch
	}
	expected, err := s.mac(raw, apiKey)
	if err != nil {
		return err
	}
	if !hmac.Equal(expected, provided) {
		return ErrChecksumMismatch
	}
	return nil
}

// DecodePayload reverses the payload encoding back into an OrderRequest.
func DecodePayload(payload string) (order.OrderRequest, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return order.OrderRequest{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	var out order.OrderRequest
	if err := json.Unmarshal(raw, &out); err != nil {
		return order.OrderRequest{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return out, nil
}

func (s Signer) canonicalizer() Canonicalizer {
	if s.Canonicalizer == nil {
		return InsertionOrder
	}
	return s.Canonicalizer
}

func (s Signer) mac(msg []byte, apiKey string) ([]byte, error) {
	var fn func() hash.Hash
	switch s.Scheme {
	case "", SchemeHMACSHA512:
		fn = sha512.New
	case SchemeHMACSHA256:
		fn = sha256.New
	default:
		return nil, fmt.Errorf("signing: unsupported scheme %q", s.Scheme)
	}
	m := hmac.New(fn, []byte(apiKey))
	m.Write(msg)
	return m.Sum(nil), nil
}

func (s Signer) encode(sum []byte) string {
	if s.Encoding == EncodingHex {
		return hex.EncodeToString(sum)
	}
	return base64.StdEncoding.EncodeToString(sum)
}

func (s Signer) decode(value string) ([]byte, error) {
	if s.Encoding == EncodingHex {
		return hex.DecodeString(value)
	}
	return base64.StdEncoding.DecodeString(value)
}

func checkKey(apiKey string) error {
	if apiKey == "" {
		return &KeyError{Reason: "empty"}
	}
	if strings.TrimSpace(apiKey) != apiKey {
		return &KeyError{Reason: "surrounding whitespace"}
	}
	if prefixedSecret.MatchString(apiKey) {
		return &KeyError{Reason: "secret key prefix not stripped"}
	}
	return nil
}

// ParseScheme maps a config value onto a Scheme.
func ParseScheme(value string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(value))) {
	case "", SchemeHMACSHA512:
		return SchemeHMACSHA512, nil
	case SchemeHMACSHA256:
		return SchemeHMACSHA256, nil
	default:
		return "", fmt.Errorf("signing: unknown scheme %q", value)
	}
}

// ParseEncoding maps a config value onto an Encoding.
func ParseEncoding(value string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(value))) {
	case "", EncodingBase64:
		return EncodingBase64, nil
	case EncodingHex:
		return EncodingHex, nil
	default:
		return "", fmt.Errorf("signing: unknown encoding %q", value)
	}
}
