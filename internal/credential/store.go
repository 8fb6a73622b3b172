// Package credential implements the Credential Store (C2): an opaque
// per-provider {apiKey, ...} map backed by a kv.Store, with a validate
// operation that delegates to the provider adapter's validation probe.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/kv"
)

// Credentials is opaque to the core beyond the apiKey field (§3).
type Credentials struct {
	APIKey string            `json:"apiKey"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Validator runs a provider's minimal validation request and reports
// whether the credentials are accepted. Provider adapters satisfy this
// by building buildValidationRequest, executing it, and checking the
// HTTP status (§4.4) — the Credential Store never inspects HTTP itself.
type Validator func(ctx context.Context, providerID config.ProviderID, creds Credentials) bool

// Store is the Credential Store: get/put/delete/exists plus validate.
// Storage is a kv.Store keyed by "cred:<providerId>" — the core never
// logs credential material (P5) and never caches it across calls.
type Store struct {
	kv        kv.Store
	validator Validator
}

// New builds a Credential Store over the given backing store. validator
// may be nil; Validate then always reports false.
func New(backing kv.Store, validator Validator) *Store {
	return &Store{kv: backing, validator: validator}
}

func key(providerID config.ProviderID) string {
	return fmt.Sprintf("cred:%s", providerID)
}

// Get returns the stored credentials for a provider, or (nil, nil) if
// none are stored — matching §4.2's Credentials|null contract.
func (s *Store) Get(ctx context.Context, providerID config.ProviderID) (*Credentials, error) {
	raw, err := s.kv.Get(ctx, key(providerID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential store get: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("credential store: corrupt record for %q: %w", providerID, err)
	}
	return &creds, nil
}

// Put stores credentials for a provider, overwriting any existing value.
func (s *Store) Put(ctx context.Context, providerID config.ProviderID, creds Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("credential store: marshal: %w", err)
	}
	if err := s.kv.Put(ctx, key(providerID), string(raw)); err != nil {
		return fmt.Errorf("credential store put: %w", err)
	}
	return nil
}

// Delete removes a provider's stored credentials.
func (s *Store) Delete(ctx context.Context, providerID config.ProviderID) error {
	if err := s.kv.Delete(ctx, key(providerID)); err != nil {
		return fmt.Errorf("credential store delete: %w", err)
	}
	return nil
}

// Exists reports whether a provider has stored credentials.
func (s *Store) Exists(ctx context.Context, providerID config.ProviderID) (bool, error) {
	ok, err := s.kv.Exists(ctx, key(providerID))
	if err != nil {
		return false, fmt.Errorf("credential store exists: %w", err)
	}
	return ok, nil
}

// ExistsMultiple batches Exists across several providers — the backing
// operation for credentialOperation's checkMultiple verb (SPEC_FULL §4).
func (s *Store) ExistsMultiple(ctx context.Context, providerIDs []config.ProviderID) (map[config.ProviderID]bool, error) {
	results := make(map[config.ProviderID]bool, len(providerIDs))
	for _, id := range providerIDs {
		ok, err := s.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		results[id] = ok
	}
	return results, nil
}

// Validate runs the provider's validation probe against the given
// credentials without requiring them to already be stored. It delegates
// to the adapter via the injected Validator and never throws: exceptions
// inside the probe are the adapter's responsibility to convert to false
// (§4.4's validateCredentials contract).
func (s *Store) Validate(ctx context.Context, providerID config.ProviderID, creds Credentials) bool {
	if s.validator == nil {
		return false
	}
	return s.validator(ctx, providerID, creds)
}
