package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainPipeline = "pscs/pipeline/v1"
	DomainParams   = "pscs/params/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PipelineHash computes the identity of a pipeline definition.
// def must already be in its canonical object form (see designer.Definition.Canonical).
func PipelineHash(def Object) (string, error) {
	canonical, err := MarshalCanonical(def)
	if err != nil {
		return "", fmt.Errorf("PipelineHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPipeline, canonical), nil
}

// ParamsHash computes the identity of a single node's bound parameters.
// Two nodes of the same type with equal ParamsHash will do the same work.
func ParamsHash(nodeType string, params Object) (string, error) {
	if params == nil {
		params = Object{}
	}
	obj := Object{
		"type":   String(nodeType),
		"params": params,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ParamsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainParams, canonical), nil
}

// MustPipelineHash is like PipelineHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPipelineHash(def Object) string {
	h, err := PipelineHash(def)
	if err != nil {
		panic(err)
	}
	return h
}
