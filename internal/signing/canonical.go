package signing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	canonicaljson "github.com/gibson042/canonicaljson-go"
)

// Canonicalizer turns a value into the exact bytes that are encoded and signed.
type Canonicalizer interface {
	Canonicalize(v any) ([]byte, error)
	Name() string
}

var (
	// InsertionOrder emits object keys in struct declaration order with no
	// insignificant whitespace and no HTML escaping, byte-compatible with
	// JavaScript's JSON.stringify on the same object.
	InsertionOrder Canonicalizer = insertionOrder{}
	// SortedKeys emits gibson042 canonical JSON: keys sorted, numbers in
	// exponent form. Useful when the verifier re-canonicalises the document.
	SortedKeys Canonicalizer = sortedKeys{}
)

type insertionOrder struct{}

func (insertionOrder) Name() string { return "insertion" }

func (insertionOrder) Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

type sortedKeys struct{}

func (sortedKeys) Name() string { return "sorted" }

func (sortedKeys) Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// json.Number keeps amounts exact; a float64 would round large or precise decimals
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return canonicaljson.Marshal(generic)
}

// CanonicalizerByName maps a config value onto a Canonicalizer.
func CanonicalizerByName(name string) (Canonicalizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "insertion":
		return InsertionOrder, nil
	case "sorted", "canonical":
		return SortedKeys, nil
	default:
		return nil, fmt.Errorf("signing: unknown canonicalizer %q", name)
	}
}
