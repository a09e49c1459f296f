package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/noah-isme/xmoney-playground/internal/credentials"
	"github.com/noah-isme/xmoney-playground/internal/order"
	"github.com/noah-isme/xmoney-playground/internal/signing"
)

// sign prints the {payload, checksum} pair for an order read from a file or
// stdin, or checks a pair with -verify.
// Exit code 0 = ok, 1 = checksum mismatch or invalid order, 2 = other error.
func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	key := fs.String("key", os.Getenv("XMONEY_SECRET_KEY"), "api key or sk_{env}_ secret key")
	in := fs.String("in", "-", "order JSON file, - for stdin")
	build := fs.Bool("build", false, "treat input as {amount, currency, description, publicKey, customer} and apply demo defaults")
	baseURL := fs.String("base-url", "http://localhost:5173", "base url for backUrl when -build is set")
	verify := fs.Bool("verify", false, "verify -payload and -checksum instead of signing")
	payload := fs.String("payload", "", "payload to verify")
	checksum := fs.String("checksum", "", "checksum to verify")
	canonical := fs.String("canonical", "insertion", "canonical JSON: insertion or sorted")
	scheme := fs.String("scheme", "hmac-sha512", "MAC: hmac-sha512 or hmac-sha256")
	encoding := fs.String("encoding", "base64", "checksum encoding: base64 or hex")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	apiKey, _ := credentials.ParseSecretKey(strings.TrimSpace(*key))
	if apiKey == "" {
		fmt.Fprintln(stderr, "sign: -key or XMONEY_SECRET_KEY is required")
		return 2
	}
	signer, err := newSigner(*canonical, *scheme, *encoding)
	if err != nil {
		fmt.Fprintf(stderr, "sign: %v\n", err)
		return 2
	}

	if *verify {
		return runVerify(signer, *payload, *checksum, apiKey, stdout, stderr)
	}

	raw, err := readInput(*in, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "sign: read input: %v\n", err)
		return 2
	}
	req, err := decodeOrder(raw, *build, *baseURL)
	if err != nil {
		fmt.Fprintf(stderr, "sign: %v\n", err)
		return 1
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(stderr, "sign: invalid order: %v\n", err)
		return 1
	}
	signed, err := signer.Sign(req, apiKey)
	if err != nil {
		fmt.Fprintf(stderr, "sign: %v\n", err)
		return 2
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(signed); err != nil {
		fmt.Fprintf(stderr, "sign: write output: %v\n", err)
		return 2
	}
	return 0
}

func runVerify(signer signing.Signer, payload, checksum, apiKey string, stdout, stderr io.Writer) int {
	if payload == "" || checksum == "" {
		fmt.Fprintln(stderr, "sign: -verify needs -payload and -checksum")
		return 2
	}
	err := signer.Verify(payload, checksum, apiKey)
	switch {
	case errors.Is(err, signing.ErrChecksumMismatch):
		fmt.Fprintln(stdout, "checksum: MISMATCH")
		return 1
	case err != nil:
		fmt.Fprintf(stderr, "sign: %v\n", err)
		return 2
	}
	fmt.Fprintln(stdout, "checksum: OK")
	return 0
}

func newSigner(canonical, scheme, encoding string) (signing.Signer, error) {
	c, err := signing.CanonicalizerByName(canonical)
	if err != nil {
		return signing.Signer{}, err
	}
	s, err := signing.ParseScheme(scheme)
	if err != nil {
		return signing.Signer{}, err
	}
	e, err := signing.ParseEncoding(encoding)
	if err != nil {
		return signing.Signer{}, err
	}
	return signing.Signer{Canonicalizer: c, Scheme: s, Encoding: e}, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

type buildInput struct {
	Amount      *order.Amount   `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	PublicKey   string          `json:"publicKey"`
	Customer    *order.Customer `json:"customer"`
	VerifyCard  bool            `json:"verifyCard"`
}

func decodeOrder(raw []byte, build bool, baseURL string) (order.OrderRequest, error) {
	if !build {
		var req order.OrderRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return order.OrderRequest{}, fmt.Errorf("decode order: %w", err)
		}
		return req, nil
	}
	var in buildInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return order.OrderRequest{}, fmt.Errorf("decode input: %w", err)
	}
	b := order.NewBuilder()
	oi := order.Input{
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		PublicKey:   in.PublicKey,
		Customer:    in.Customer,
		BaseURL:     baseURL,
	}
	if in.VerifyCard {
		return b.Verification(oi), nil
	}
	return b.Checkout(oi), nil
}
