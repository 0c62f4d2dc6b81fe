package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrKeyNotFound indicates the requested API key does not exist in the store.
	ErrKeyNotFound = errors.New("api key not found")

	// ErrKeyRevoked indicates the API key has been revoked and can no longer be used.
	ErrKeyRevoked = errors.New("api key revoked")

	// ErrKeyExpired indicates the API key has passed its expiration time.
	ErrKeyExpired = errors.New("api key expired")

	// ErrInvalidKey indicates the provided raw key does not match any stored hash.
	ErrInvalidKey = errors.New("invalid api key")

	// ErrInsufficientScopes indicates the API key does not carry the scopes the
	// requested operation needs.
	ErrInsufficientScopes = errors.New("insufficient scopes")
)

const (
	// apiKeyPrefix marks generated keys so they are recognizable in
	// Authorization headers, logs and configuration files.
	apiKeyPrefix = "cardia_k1_"

	// apiKeyRandomBytes of entropy per key, hex encoded into the key body.
	apiKeyRandomBytes = 16

	// apiKeyDisplayLen is how much of the raw key is kept as the stored,
	// displayable prefix.
	apiKeyDisplayLen = len(apiKeyPrefix) + 6
)

// APIKey is a managed credential for programmatic access. Only the SHA-256
// hash of the key material is ever stored.
type APIKey struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	KeyHash    string            `json:"-"`
	KeyPrefix  string            `json:"key_prefix"`
	TenantID   string            `json:"tenant_id"`
	ClientID   string            `json:"client_id"`
	Scopes     []string          `json:"scopes"`
	RateLimit  int               `json:"rate_limit"`
	Status     string            `json:"status"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	RevokedAt  *time.Time        `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time        `json:"last_used_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (k *APIKey) clone() *APIKey {
	cp := *k
	cp.Scopes = append([]string(nil), k.Scopes...)
	if k.Metadata != nil {
		cp.Metadata = make(map[string]string, len(k.Metadata))
		for mk, mv := range k.Metadata {
			cp.Metadata[mk] = mv
		}
	}
	cp.ExpiresAt = cloneTime(k.ExpiresAt)
	cp.RevokedAt = cloneTime(k.RevokedAt)
	cp.LastUsedAt = cloneTime(k.LastUsedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// APIKeyStore persists API keys. Implementations must not retain or return
// aliases to the caller's structs.
type APIKeyStore interface {
	CreateKey(ctx context.Context, key *APIKey) error
	GetByID(ctx context.Context, id string) (*APIKey, error)
	GetByHash(ctx context.Context, hash string) (*APIKey, error)

	// ListByTenant returns a tenant's keys plus the total count before
	// pagination.
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*APIKey, int, error)
	ListByClient(ctx context.Context, clientID string) ([]*APIKey, error)

	UpdateKey(ctx context.Context, key *APIKey) error
	DeleteKey(ctx context.Context, id string) error
}

// KeySpec carries the caller-chosen attributes of a new API key.
type KeySpec struct {
	Name      string
	TenantID  string
	ClientID  string
	Scopes    []string
	RateLimit int
	ExpiresAt *time.Time
	Metadata  map[string]string
}

// APIKeyManager owns the key lifecycle: minting, validation, revocation and
// rotation.
type APIKeyManager struct {
	store APIKeyStore
	now   func() time.Time
}

// NewAPIKeyManager creates a manager backed by the given store.
func NewAPIKeyManager(store APIKeyStore) *APIKeyManager {
	return &APIKeyManager{store: store, now: time.Now}
}

// GenerateKey mints a key from spec and persists it. The raw key string is
// returned exactly once; afterwards only its hash exists.
func (m *APIKeyManager) GenerateKey(ctx context.Context, spec KeySpec) (*APIKey, string, error) {
	rawKey, err := mintRawKey()
	if err != nil {
		return nil, "", fmt.Errorf("generating raw key: %w", err)
	}

	key := &APIKey{
		ID:        uuid.New().String(),
		Name:      spec.Name,
		KeyHash:   hashRawKey(rawKey),
		KeyPrefix: rawKey[:apiKeyDisplayLen],
		TenantID:  spec.TenantID,
		ClientID:  spec.ClientID,
		Scopes:    spec.Scopes,
		RateLimit: spec.RateLimit,
		Status:    "active",
		ExpiresAt: spec.ExpiresAt,
		CreatedAt: m.now(),
		Metadata:  spec.Metadata,
	}

	if err := m.store.CreateKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("storing key: %w", err)
	}
	return key.clone(), rawKey, nil
}

// ValidateKey resolves a raw key to its record and checks that it is active
// and unexpired. Successful use stamps LastUsedAt best-effort.
func (m *APIKeyManager) ValidateKey(ctx context.Context, rawKey string) (*APIKey, error) {
	key, err := m.store.GetByHash(ctx, hashRawKey(rawKey))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("looking up key: %w", err)
	}

	if key.Status == "revoked" {
		return nil, ErrKeyRevoked
	}
	if key.ExpiresAt != nil && m.now().After(*key.ExpiresAt) {
		return nil, ErrKeyExpired
	}

	used := m.now()
	key.LastUsedAt = &used
	_ = m.store.UpdateKey(ctx, key)

	return key, nil
}

// GetKey returns a key record by ID.
func (m *APIKeyManager) GetKey(ctx context.Context, id string) (*APIKey, error) {
	return m.store.GetByID(ctx, id)
}

// RevokeKey marks a key revoked. Revoking a revoked key is a no-op.
func (m *APIKeyManager) RevokeKey(ctx context.Context, id string) error {
	key, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if key.Status == "revoked" {
		return nil
	}

	revoked := m.now()
	key.Status = "revoked"
	key.RevokedAt = &revoked
	return m.store.UpdateKey(ctx, key)
}

// RotateKey revokes the old key and mints a replacement with the same
// attributes, returning the new record and raw key.
func (m *APIKeyManager) RotateKey(ctx context.Context, id string) (*APIKey, string, error) {
	old, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if err := m.RevokeKey(ctx, id); err != nil {
		return nil, "", fmt.Errorf("revoking old key: %w", err)
	}

	return m.GenerateKey(ctx, KeySpec{
		Name:      old.Name,
		TenantID:  old.TenantID,
		ClientID:  old.ClientID,
		Scopes:    old.Scopes,
		RateLimit: old.RateLimit,
		ExpiresAt: old.ExpiresAt,
		Metadata:  old.Metadata,
	})
}

// ListKeys pages through a tenant's keys.
func (m *APIKeyManager) ListKeys(ctx context.Context, tenantID string, limit, offset int) ([]*APIKey, int, error) {
	return m.store.ListByTenant(ctx, tenantID, limit, offset)
}

func mintRawKey() (string, error) {
	b := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

func hashRawKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
