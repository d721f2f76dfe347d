package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Client modes.
const (
	ModeEnforce = "enforce"
	ModeShadow  = "shadow"
)

// Client represents a row in the clients table.
type Client struct {
	ID           string
	Name         string
	APIKeyHash   string
	APIKeyPrefix string
	Mode         string // "enforce" or "shadow"
	Policy       json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrInvalidMode is returned for a mode other than enforce or shadow.
var ErrInvalidMode = errors.New("mode must be enforce or shadow")

// GenerateAPIKey creates a new tsk_ API key with its bcrypt hash and prefix.
// Returns (fullKey, hash, prefix, error). The fullKey is shown to the user once.
func GenerateAPIKey() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}
	fullKey := "tsk_" + hex.EncodeToString(raw) // 68 chars total

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}

	prefix := fullKey[:8] // "tsk_abcd"
	return fullKey, string(hashBytes), prefix, nil
}

// CreateClient inserts a new client. Returns the client and the plaintext
// API key (shown once).
func (s *Store) CreateClient(ctx context.Context, name, mode string) (*Client, string, error) {
	if mode == "" {
		mode = ModeEnforce
	}
	if mode != ModeEnforce && mode != ModeShadow {
		return nil, "", fmt.Errorf("CreateClient: %w", ErrInvalidMode)
	}

	fullKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("CreateClient: %w", err)
	}

	var c Client
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO clients (id, name, api_key_hash, api_key_prefix, mode)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, api_key_hash, api_key_prefix, mode, policy, created_at, updated_at`,
		uuid.NewString(), name, keyHash, keyPrefix, mode,
	).Scan(&c.ID, &c.Name, &c.APIKeyHash, &c.APIKeyPrefix, &c.Mode, &c.Policy,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("CreateClient: %w", err)
	}
	return &c, fullKey, nil
}

// UpdateClientPolicy replaces a client's policy document. Returns
// sql.ErrNoRows if the client does not exist.
func (s *Store) UpdateClientPolicy(ctx context.Context, id string, policy json.RawMessage) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE clients SET policy = $2, updated_at = now() WHERE id = $1`,
		id, []byte(policy),
	)
	if err != nil {
		return fmt.Errorf("UpdateClientPolicy: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LookupByPrefix finds a client by API key prefix (first 8 chars), or nil
// if none matches. Used by auth to narrow candidates before bcrypt verify.
func (s *Store) LookupByPrefix(ctx context.Context, prefix string) (*Client, error) {
	var c Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, mode, policy, created_at, updated_at
		FROM clients WHERE api_key_prefix = $1`, prefix,
	).Scan(&c.ID, &c.Name, &c.APIKeyHash, &c.APIKeyPrefix, &c.Mode, &c.Policy,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupByPrefix: %w", err)
	}
	return &c, nil
}
