package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// maxActiveKeys is the per-user quota of non-revoked keys.
	maxActiveKeys = 5

	// secretByteLen gives 256 bits of entropy (64 hex chars).
	secretByteLen = 32

	// keyPrefixLen is how many leading hex chars of the secret body are kept
	// in the clear as the lookup index. The private comparison is still done
	// against the bcrypt hash of the full secret.
	keyPrefixLen = 12

	secretScheme = "sk_"
)

// KeyServiceImpl implements ports.KeyService.
type KeyServiceImpl struct {
	keyRepo  ports.APIKeyRepository
	userRepo ports.UserRepository
	hashSvc  ports.HashService
	now      func() time.Time
	log      zerolog.Logger
}

// NewKeyService creates a new KeyServiceImpl. now is the clock used for
// expiry arithmetic; pass time.Now outside tests.
func NewKeyService(
	keyRepo ports.APIKeyRepository,
	userRepo ports.UserRepository,
	hashSvc ports.HashService,
	now func() time.Time,
	log zerolog.Logger,
) *KeyServiceImpl {
	return &KeyServiceImpl{
		keyRepo:  keyRepo,
		userRepo: userRepo,
		hashSvc:  hashSvc,
		now:      now,
		log:      log,
	}
}

// Create issues a new API key. The plaintext secret is returned exactly once.
func (s *KeyServiceImpl) Create(ctx context.Context, userID uuid.UUID, req ports.CreateKeyRequest) (*ports.CreatedKey, error) {
	if invalid := invalidPermissions(req.Permissions); len(invalid) > 0 {
		return nil, apperror.ErrInvalidPermissions(strings.Join(invalid, ", "))
	}

	expiresAt, err := calculateExpiry(req.Expiry, s.now())
	if err != nil {
		return nil, err
	}

	active, err := s.keyRepo.CountActive(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count active keys: %w", err))
	}
	if active >= maxActiveKeys {
		return nil, apperror.ErrKeyQuotaExceeded()
	}

	rawSecret, prefix, err := generateSecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate secret: %w", err))
	}
	keyHash, err := s.hashSvc.Hash(rawSecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash secret: %w", err))
	}

	key := &domain.APIKey{
		ID:          uuid.New(),
		KeyPrefix:   prefix,
		KeyHash:     keyHash,
		Name:        req.Name,
		Permissions: req.Permissions,
		ExpiresAt:   expiresAt,
		Revoked:     false,
		UserID:      userID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.keyRepo.Create(ctx, key); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create api key: %w", err))
	}

	s.log.Info().
		Str("key_id", key.ID.String()).
		Str("user_id", userID.String()).
		Time("expires_at", expiresAt).
		Msg("api key issued")

	return &ports.CreatedKey{
		ID:          key.ID,
		RawSecret:   rawSecret,
		Name:        key.Name,
		Permissions: key.Permissions,
		ExpiresAt:   key.ExpiresAt,
		CreatedAt:   key.CreatedAt,
	}, nil
}

// Rollover issues a replacement for an expired key, inheriting its
// permission set verbatim. The old record is left untouched for audit.
func (s *KeyServiceImpl) Rollover(ctx context.Context, userID uuid.UUID, req ports.RolloverKeyRequest) (*ports.CreatedKey, error) {
	oldKey, err := s.keyRepo.GetByID(ctx, req.ExpiredKeyID, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find key: %w", err))
	}
	if oldKey == nil {
		return nil, apperror.ErrNotFound("API key")
	}
	if !oldKey.IsExpired(s.now()) {
		return nil, apperror.ErrKeyNotYetExpired()
	}

	expiresAt, err := calculateExpiry(req.Expiry, s.now())
	if err != nil {
		return nil, err
	}

	active, err := s.keyRepo.CountActive(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count active keys: %w", err))
	}
	if active >= maxActiveKeys {
		return nil, apperror.ErrKeyQuotaExceeded()
	}

	rawSecret, prefix, err := generateSecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate secret: %w", err))
	}
	keyHash, err := s.hashSvc.Hash(rawSecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash secret: %w", err))
	}

	newKey := &domain.APIKey{
		ID:          uuid.New(),
		KeyPrefix:   prefix,
		KeyHash:     keyHash,
		Name:        oldKey.Name + " (rolled over)",
		Permissions: oldKey.Permissions,
		ExpiresAt:   expiresAt,
		Revoked:     false,
		UserID:      userID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.keyRepo.Create(ctx, newKey); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create rollover key: %w", err))
	}

	s.log.Info().
		Str("old_key_id", oldKey.ID.String()).
		Str("new_key_id", newKey.ID.String()).
		Str("user_id", userID.String()).
		Msg("api key rolled over")

	return &ports.CreatedKey{
		ID:          newKey.ID,
		RawSecret:   rawSecret,
		Name:        newKey.Name,
		Permissions: newKey.Permissions,
		ExpiresAt:   newKey.ExpiresAt,
		CreatedAt:   newKey.CreatedAt,
	}, nil
}

// Revoke flips the revoked flag. Revoking an already-revoked key succeeds
// silently; a key that does not exist (or belongs to someone else) is
// NotFound.
func (s *KeyServiceImpl) Revoke(ctx context.Context, keyID, userID uuid.UUID) error {
	found, err := s.keyRepo.SetRevoked(ctx, keyID, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("revoke key: %w", err))
	}
	if !found {
		return apperror.ErrNotFound("API key")
	}
	s.log.Info().Str("key_id", keyID.String()).Str("user_id", userID.String()).Msg("api key revoked")
	return nil
}

// List returns the user's keys, newest first. Hashes never leave the store.
func (s *KeyServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	keys, err := s.keyRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list keys: %w", err))
	}
	return keys, nil
}

// Validate matches a raw secret against stored hashes. A revoked or expired
// key is treated identically to no match; the caller never learns which.
func (s *KeyServiceImpl) Validate(ctx context.Context, rawSecret string) (*domain.User, domain.PermissionSet, error) {
	prefix, ok := secretPrefix(rawSecret)
	if !ok {
		return nil, nil, nil
	}

	candidates, err := s.keyRepo.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("find keys by prefix: %w", err))
	}

	now := s.now()
	for i := range candidates {
		key := &candidates[i]
		if !s.hashSvc.Compare(rawSecret, key.KeyHash) {
			continue
		}
		if !key.IsUsable(now) {
			return nil, nil, nil
		}
		user, err := s.userRepo.GetByID(ctx, key.UserID)
		if err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("load key owner: %w", err))
		}
		if user == nil {
			return nil, nil, nil
		}
		return user, key.Permissions, nil
	}
	return nil, nil, nil
}

// calculateExpiry resolves a symbolic duration code against now using
// calendar arithmetic: month and year adds normalize the way time.AddDate
// does (Jan 31 + 1M rolls into early March).
func calculateExpiry(code string, now time.Time) (time.Time, error) {
	switch code {
	case "1H":
		return now.Add(time.Hour), nil
	case "1D":
		return now.AddDate(0, 0, 1), nil
	case "1M":
		return now.AddDate(0, 1, 0), nil
	case "1Y":
		return now.AddDate(1, 0, 0), nil
	}
	return time.Time{}, apperror.ErrInvalidExpiry()
}

// generateSecret produces the one-time plaintext secret (sk_ + 64 hex chars)
// and its clear lookup prefix.
func generateSecret() (raw string, prefix string, err error) {
	b := make([]byte, secretByteLen)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	body := hex.EncodeToString(b)
	return secretScheme + body, body[:keyPrefixLen], nil
}

// secretPrefix extracts the lookup prefix from a candidate secret.
func secretPrefix(rawSecret string) (string, bool) {
	if !strings.HasPrefix(rawSecret, secretScheme) {
		return "", false
	}
	body := rawSecret[len(secretScheme):]
	if len(body) != secretByteLen*2 {
		return "", false
	}
	return body[:keyPrefixLen], true
}

// invalidPermissions returns the names of any unknown requested permissions.
func invalidPermissions(perms []domain.Permission) []string {
	var invalid []string
	for _, p := range perms {
		if !p.IsValid() {
			invalid = append(invalid, string(p))
		}
	}
	return invalid
}
