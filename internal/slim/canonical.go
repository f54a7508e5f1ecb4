package slim

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainExpression = "slim/expression/v1"
	DomainType       = "slim/type/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the content address of an expression: the
// domain-separated SHA-256 of its NFC-normalized encoding. Encoding the same
// tree twice yields the same hash.
func ContentHash(e Expression) (string, error) {
	data, err := Marshal(e)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return HashPayload(data), nil
}

// TypeContentHash returns the content address of a type descriptor.
func TypeContentHash(t Type) (string, error) {
	data, err := MarshalType(t)
	if err != nil {
		return "", fmt.Errorf("type content hash: %w", err)
	}
	return hashWithDomain(DomainType, norm.NFC.Bytes(data)), nil
}

// HashPayload returns the content address of an already encoded expression
// payload.
func HashPayload(data []byte) string {
	return hashWithDomain(DomainExpression, norm.NFC.Bytes(data))
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(e Expression) string {
	h, err := ContentHash(e)
	if err != nil {
		panic(err)
	}
	return h
}
