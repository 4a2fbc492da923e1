package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type keyTestDeps struct {
	svc      *KeyServiceImpl
	keyRepo  *mocks.MockAPIKeyRepository
	userRepo *mocks.MockUserRepository
	hashSvc  *mocks.MockHashService
	now      time.Time
	ctrl     *gomock.Controller
}

func setupKeyService(t *testing.T) *keyTestDeps {
	ctrl := gomock.NewController(t)
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	d := &keyTestDeps{
		keyRepo:  mocks.NewMockAPIKeyRepository(ctrl),
		userRepo: mocks.NewMockUserRepository(ctrl),
		hashSvc:  mocks.NewMockHashService(ctrl),
		now:      now,
		ctrl:     ctrl,
	}
	d.svc = NewKeyService(d.keyRepo, d.userRepo, d.hashSvc, func() time.Time { return now }, zerolog.Nop())
	return d
}

// ==================== Create Tests ====================

func TestKeyService_Create_Success(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	req := ports.CreateKeyRequest{
		Name:        "ci-deploy",
		Permissions: []domain.Permission{domain.PermissionDeposit, domain.PermissionRead},
		Expiry:      "1D",
	}

	d.keyRepo.EXPECT().CountActive(ctx, userID).Return(2, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("$2a$10$hashed", nil)

	var stored *domain.APIKey
	d.keyRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, key *domain.APIKey) error {
			stored = key
			return nil
		})

	created, err := d.svc.Create(ctx, userID, req)
	require.NoError(t, err)
	require.NotNil(t, created)

	// sk_ + 64 hex chars, returned exactly once.
	assert.True(t, strings.HasPrefix(created.RawSecret, "sk_"))
	assert.Len(t, created.RawSecret, 3+64)
	assert.Equal(t, d.now.AddDate(0, 0, 1), created.ExpiresAt)

	require.NotNil(t, stored)
	assert.Equal(t, "$2a$10$hashed", stored.KeyHash)
	assert.Equal(t, created.RawSecret[3:3+12], stored.KeyPrefix)
	assert.Equal(t, req.Permissions, []domain.Permission(stored.Permissions))
	assert.False(t, stored.Revoked)
}

func TestKeyService_Create_InvalidPermission(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), uuid.New(), ports.CreateKeyRequest{
		Name:        "bad",
		Permissions: []domain.Permission{"admin"},
		Expiry:      "1D",
	})
	require.Error(t, err)
	assertAppErrCode(t, err, "KEY_002")
}

func TestKeyService_Create_InvalidExpiry(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), uuid.New(), ports.CreateKeyRequest{
		Name:        "bad",
		Permissions: []domain.Permission{domain.PermissionRead},
		Expiry:      "2W",
	})
	require.Error(t, err)
	assertAppErrCode(t, err, "KEY_004")
}

func TestKeyService_Create_QuotaExceeded(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	d.keyRepo.EXPECT().CountActive(ctx, userID).Return(5, nil)

	_, err := d.svc.Create(ctx, userID, ports.CreateKeyRequest{
		Name:        "one-too-many",
		Permissions: []domain.Permission{domain.PermissionRead},
		Expiry:      "1H",
	})
	require.Error(t, err)
	assertAppErrCode(t, err, "KEY_001")
}

func TestKeyService_CalculateExpiry_CalendarArithmetic(t *testing.T) {
	// Jan 31 + 1M normalizes into March the way time.AddDate does.
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	got, err := calculateExpiry("1M", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC), got)

	got, err = calculateExpiry("1Y", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC), got)

	got, err = calculateExpiry("1H", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), got)
}

// ==================== Rollover Tests ====================

func expiredKey(userID uuid.UUID, now time.Time) *domain.APIKey {
	return &domain.APIKey{
		ID:          uuid.New(),
		KeyPrefix:   "abcdef123456",
		KeyHash:     "$2a$10$old",
		Name:        "payments",
		Permissions: domain.PermissionSet{domain.PermissionTransfer},
		ExpiresAt:   now.Add(-time.Hour),
		UserID:      userID,
		CreatedAt:   now.Add(-48 * time.Hour),
	}
}

func TestKeyService_Rollover_Success(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	old := expiredKey(userID, d.now)

	d.keyRepo.EXPECT().GetByID(ctx, old.ID, userID).Return(old, nil)
	d.keyRepo.EXPECT().CountActive(ctx, userID).Return(1, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("$2a$10$new", nil)

	var stored *domain.APIKey
	d.keyRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, key *domain.APIKey) error {
			stored = key
			return nil
		})

	created, err := d.svc.Rollover(ctx, userID, ports.RolloverKeyRequest{
		ExpiredKeyID: old.ID,
		Expiry:       "1M",
	})
	require.NoError(t, err)

	// Replacement inherits permissions and marks its lineage in the name.
	assert.Equal(t, "payments (rolled over)", created.Name)
	assert.Equal(t, old.Permissions, created.Permissions)
	assert.NotEqual(t, old.ID, created.ID)
	require.NotNil(t, stored)
	assert.Equal(t, old.Permissions, stored.Permissions)
}

func TestKeyService_Rollover_NotYetExpired(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	stillValid := expiredKey(userID, d.now)
	stillValid.ExpiresAt = d.now.Add(time.Hour)

	d.keyRepo.EXPECT().GetByID(ctx, stillValid.ID, userID).Return(stillValid, nil)

	_, err := d.svc.Rollover(ctx, userID, ports.RolloverKeyRequest{
		ExpiredKeyID: stillValid.ID,
		Expiry:       "1M",
	})
	require.Error(t, err)
	assertAppErrCode(t, err, "KEY_003")
}

func TestKeyService_Rollover_KeyNotFound(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	keyID := uuid.New()

	d.keyRepo.EXPECT().GetByID(ctx, keyID, userID).Return(nil, nil)

	_, err := d.svc.Rollover(ctx, userID, ports.RolloverKeyRequest{ExpiredKeyID: keyID, Expiry: "1M"})
	require.Error(t, err)
	assertAppErrCode(t, err, "GEN_001")
}

// ==================== Revoke Tests ====================

func TestKeyService_Revoke_Success(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	keyID, userID := uuid.New(), uuid.New()
	d.keyRepo.EXPECT().SetRevoked(ctx, keyID, userID).Return(true, nil)

	require.NoError(t, d.svc.Revoke(ctx, keyID, userID))
}

func TestKeyService_Revoke_NotFound(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	keyID, userID := uuid.New(), uuid.New()
	d.keyRepo.EXPECT().SetRevoked(ctx, keyID, userID).Return(false, nil)

	err := d.svc.Revoke(ctx, keyID, userID)
	require.Error(t, err)
	assertAppErrCode(t, err, "GEN_001")
}

// ==================== Validate Tests ====================

func TestKeyService_Validate_Success(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	rawSecret := "sk_" + strings.Repeat("ab", 32)
	prefix := strings.Repeat("ab", 32)[:12]
	key := domain.APIKey{
		ID:          uuid.New(),
		KeyPrefix:   prefix,
		KeyHash:     "$2a$10$hashed",
		Permissions: domain.PermissionSet{domain.PermissionRead},
		ExpiresAt:   d.now.Add(time.Hour),
		UserID:      userID,
	}
	owner := &domain.User{ID: userID, Email: "alice@example.com", IsActive: true}

	d.keyRepo.EXPECT().FindByPrefix(ctx, prefix).Return([]domain.APIKey{key}, nil)
	d.hashSvc.EXPECT().Compare(rawSecret, key.KeyHash).Return(true)
	d.userRepo.EXPECT().GetByID(ctx, userID).Return(owner, nil)

	user, perms, err := d.svc.Validate(ctx, rawSecret)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, userID, user.ID)
	assert.True(t, perms.Contains(domain.PermissionRead))
	assert.False(t, perms.Contains(domain.PermissionTransfer))
}

func TestKeyService_Validate_MalformedSecret(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	for _, secret := range []string{"", "sk_short", "pk_" + strings.Repeat("ab", 32), "no-scheme"} {
		user, perms, err := d.svc.Validate(context.Background(), secret)
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Nil(t, perms)
	}
}

func TestKeyService_Validate_ExpiredKeyRejected(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	rawSecret := "sk_" + strings.Repeat("cd", 32)
	prefix := strings.Repeat("cd", 32)[:12]
	key := domain.APIKey{
		KeyPrefix: prefix,
		KeyHash:   "$2a$10$hashed",
		ExpiresAt: d.now.Add(-time.Minute),
		UserID:    uuid.New(),
	}

	d.keyRepo.EXPECT().FindByPrefix(ctx, prefix).Return([]domain.APIKey{key}, nil)
	d.hashSvc.EXPECT().Compare(rawSecret, key.KeyHash).Return(true)

	// Expired matches are indistinguishable from unknown keys.
	user, perms, err := d.svc.Validate(ctx, rawSecret)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Nil(t, perms)
}

func TestKeyService_Validate_RevokedKeyRejected(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	rawSecret := "sk_" + strings.Repeat("ef", 32)
	prefix := strings.Repeat("ef", 32)[:12]
	key := domain.APIKey{
		KeyPrefix: prefix,
		KeyHash:   "$2a$10$hashed",
		ExpiresAt: d.now.Add(time.Hour),
		Revoked:   true,
		UserID:    uuid.New(),
	}

	d.keyRepo.EXPECT().FindByPrefix(ctx, prefix).Return([]domain.APIKey{key}, nil)
	d.hashSvc.EXPECT().Compare(rawSecret, key.KeyHash).Return(true)

	user, perms, err := d.svc.Validate(ctx, rawSecret)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Nil(t, perms)
}

func TestKeyService_Validate_NoHashMatch(t *testing.T) {
	d := setupKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	rawSecret := "sk_" + strings.Repeat("12", 32)
	prefix := strings.Repeat("12", 32)[:12]
	key := domain.APIKey{KeyPrefix: prefix, KeyHash: "$2a$10$other", ExpiresAt: d.now.Add(time.Hour)}

	d.keyRepo.EXPECT().FindByPrefix(ctx, prefix).Return([]domain.APIKey{key}, nil)
	d.hashSvc.EXPECT().Compare(rawSecret, key.KeyHash).Return(false)

	user, perms, err := d.svc.Validate(ctx, rawSecret)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Nil(t, perms)
}
