package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"persona_relay/internal/entities"
	"persona_relay/internal/interfaces"
)

// CredentialPolicy is the provider-specific shape a credential must have before it is stored.
type CredentialPolicy struct {
	Prefix    string
	MinLength int
}

// DefaultCredentialPolicy matches Google AI Studio API keys.
var DefaultCredentialPolicy = CredentialPolicy{Prefix: "AIzaSy", MinLength: 39}

func (p CredentialPolicy) Validate(credential string) error {
	if credential == "" {
		return fmt.Errorf("%w: credential is empty", entities.ErrValidationFailed)
	}
	if p.Prefix != "" && !strings.HasPrefix(credential, p.Prefix) {
		return fmt.Errorf("%w: credential must start with %q", entities.ErrValidationFailed, p.Prefix)
	}
	if len(credential) < p.MinLength {
		return fmt.Errorf("%w: credential must be at least %d characters", entities.ErrValidationFailed, p.MinLength)
	}
	for _, r := range credential {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return fmt.Errorf("%w: credential contains invalid characters", entities.ErrValidationFailed)
		}
	}
	return nil
}

// CredentialRepository owns the per-tenant provider credential. Nothing is cached in process:
// every Get goes to the store.
type CredentialRepository struct {
	kv      interfaces.KVStore
	sealer  interfaces.Sealer
	policy  CredentialPolicy
	timeout time.Duration
}

func NewCredentialRepository(kv interfaces.KVStore, policy CredentialPolicy, timeout time.Duration) *CredentialRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CredentialRepository{kv: kv, policy: policy, timeout: timeout}
}

// WithSealer encrypts values at rest. Values stored before sealing was enabled are still readable.
func (r *CredentialRepository) WithSealer(s interfaces.Sealer) *CredentialRepository {
	r.sealer = s
	return r
}

func CredentialKey(tenantID string) string {
	return "user:" + tenantID + ":key"
}

// Get returns the tenant's credential, ErrCredentialNotFound or ErrPersistenceUnavailable.
func (r *CredentialRepository) Get(ctx context.Context, tenantID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	value, found, err := r.kv.Get(ctx, CredentialKey(tenantID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrPersistenceUnavailable, err)
	}
	if !found || value == "" {
		return "", entities.ErrCredentialNotFound
	}

	if r.sealer != nil && r.sealer.IsSealed(value) {
		plain, err := r.sealer.Open(value)
		if err != nil {
			return "", fmt.Errorf("%w: stored credential unreadable: %v", entities.ErrPersistenceUnavailable, err)
		}
		return plain, nil
	}
	return value, nil
}

// Set validates and stores the credential. Invalid input never reaches the store.
func (r *CredentialRepository) Set(ctx context.Context, tenantID, credential string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is empty", entities.ErrValidationFailed)
	}
	credential = strings.TrimSpace(credential)
	if err := r.policy.Validate(credential); err != nil {
		return err
	}

	value := credential
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(credential)
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
		value = sealed
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.kv.Set(ctx, CredentialKey(tenantID), value); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrPersistenceUnavailable, err)
	}
	return nil
}

// Tenant describes what the store knows about tenantID without exposing the secret.
func (r *CredentialRepository) Tenant(ctx context.Context, tenantID string) (entities.Tenant, error) {
	t := entities.Tenant{ID: tenantID}
	credential, err := r.Get(ctx, tenantID)
	if errors.Is(err, entities.ErrCredentialNotFound) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	t.HasCredential = true
	t.CredentialHint = MaskCredential(credential)
	return t, nil
}

// MaskCredential keeps the first and last four characters of long credentials.
func MaskCredential(credential string) string {
	if len(credential) <= 12 {
		return strings.Repeat("*", len(credential))
	}
	return credential[:4] + "…" + credential[len(credential)-4:]
}
