package credentials

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// EnvTest is the sandbox environment marker.
	EnvTest = "test"
	// EnvLive is the production environment marker.
	EnvLive = "live"
)

var (
	secretKeyPattern = regexp.MustCompile(`^sk_(` + EnvTest + `|` + EnvLive + `)_(.+)$`)
	publicKeyPattern = regexp.MustCompile(`^pk_(` + EnvTest + `|` + EnvLive + `)_(.+)$`)

	// ErrEnvironmentMismatch is returned when the public and secret keys belong to different environments.
	ErrEnvironmentMismatch = errors.New("credentials: public key and secret key environments differ")
	// ErrMissing is returned when a required credential is empty.
	ErrMissing = errors.New("credentials: missing value")
)

// Credentials are the merchant keys used to sign orders and call the REST API.
type Credentials struct {
	SiteID    string `json:"siteId"`
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
	APIKey    string `json:"apiKey"`
	IsLive    bool   `json:"isLive"`
}

// ParseSecretKey extracts the signing token and environment from sk_{env}_{token}.
// Unrecognised keys are used verbatim as the token in the test environment.
func ParseSecretKey(secretKey string) (apiKey string, isLive bool) {
	match := secretKeyPattern.FindStringSubmatch(secretKey)
	if match == nil {
		return secretKey, false
	}
	return match[2], match[1] == EnvLive
}

// Environment returns "live" or "test" for a secret key.
func Environment(secretKey string) string {
	if _, live := ParseSecretKey(secretKey); live {
		return EnvLive
	}
	return EnvTest
}

// ParsePublicKey splits pk_{env}_{siteId}. ok is false when the format is not recognised.
func ParsePublicKey(publicKey string) (env, siteID string, ok bool) {
	match := publicKeyPattern.FindStringSubmatch(publicKey)
	if match == nil {
		return "", "", false
	}
	return match[1], match[2], true
}

// New derives APIKey and IsLive from the secret key.
func New(siteID, publicKey, secretKey string) Credentials {
	apiKey, live := ParseSecretKey(secretKey)
	return Credentials{
		SiteID:    siteID,
		PublicKey: publicKey,
		SecretKey: secretKey,
		APIKey:    apiKey,
		IsLive:    live,
	}
}

// Validate reports missing keys and an environment mismatch between the
// public key and the secret key. Both are caller errors.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.PublicKey) == "" {
		return fmt.Errorf("%w: publicKey", ErrMissing)
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("%w: secretKey", ErrMissing)
	}
	env, _, ok := ParsePublicKey(c.PublicKey)
	if !ok {
		return fmt.Errorf("credentials: publicKey must look like pk_{test|live}_{siteId}")
	}
	if secretKeyPattern.MatchString(c.SecretKey) && env != Environment(c.SecretKey) {
		return ErrEnvironmentMismatch
	}
	return nil
}

// Complete reports whether both signing inputs are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.PublicKey) != "" && strings.TrimSpace(c.APIKey) != ""
}

// Masked returns a copy safe to echo back to a browser.
func (c Credentials) Masked() Credentials {
	out := c
	out.SecretKey = mask(c.SecretKey)
	out.APIKey = mask(c.APIKey)
	return out
}

func mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
