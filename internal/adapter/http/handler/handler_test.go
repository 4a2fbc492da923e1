package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/internal/core/ports/mocks"
	"custodial-wallet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Auth Handler Tests ---

func TestExternalLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	user := &domain.User{ID: uuid.New(), Email: "alice@example.com"}
	expiry := time.Now().Add(time.Hour)
	mockAuth.EXPECT().HandleExternalLogin(gomock.Any(), ports.ExternalProfile{
		Email:     "alice@example.com",
		FirstName: "Alice",
	}).Return(&ports.LoginResult{User: user, Token: "jwt_token", ExpiresAt: expiry}, nil)

	body, _ := json.Marshal(dto.ExternalLoginRequest{
		Email:     "alice@example.com",
		FirstName: "Alice",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/external", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.ExternalLogin(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "jwt_token", data["token"])
	assert.Equal(t, user.ID.String(), data["user_id"])
}

func TestExternalLogin_MissingEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/external", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.ExternalLogin(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Wallet Handler Tests ---

func walletTestContext(t *testing.T, method, path string, body []byte, userID uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body != nil {
		c.Request = httptest.NewRequest(method, path, bytes.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, path, nil)
	}
	c.Set(middleware.CtxUserID, userID)
	return c, w
}

func TestGetBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	mockLedger.EXPECT().GetBalance(gomock.Any(), userID).Return(int64(7500), nil)

	c, w := walletTestContext(t, http.MethodGet, "/api/v1/wallet/balance", nil, userID)
	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(7500), data["balance"])
}

func TestInitiateDeposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	mockLedger.EXPECT().InitializeDeposit(gomock.Any(), userID, int64(50000)).Return(&ports.DepositInit{
		Reference:        "TXN_abc",
		AuthorizationURL: "https://checkout.example/x",
		AccessCode:       "x",
	}, nil)

	body, _ := json.Marshal(dto.DepositRequest{Amount: 50000})
	c, w := walletTestContext(t, http.MethodPost, "/api/v1/wallet/deposit", body, userID)
	h.InitiateDeposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "TXN_abc", data["reference"])
	assert.Equal(t, "https://checkout.example/x", data["authorization_url"])
}

func TestInitiateDeposit_BelowMinimum(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	mockLedger.EXPECT().InitializeDeposit(gomock.Any(), userID, int64(50)).
		Return(nil, apperror.ErrInvalidAmount("Minimum deposit is 10000"))

	body, _ := json.Marshal(dto.DepositRequest{Amount: 50})
	c, w := walletTestContext(t, http.MethodPost, "/api/v1/wallet/deposit", body, userID)
	h.InitiateDeposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "WAL_001")
}

func TestWebhook_VerifiesRawBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	rawBody := []byte(`{"event":"charge.success","data":{"reference":"TXN_abc","amount":5000}}`)
	mockLedger.EXPECT().HandleWebhook(gomock.Any(), rawBody, "hex_signature").Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/wallet/webhook", bytes.NewReader(rawBody))
	c.Request.Header.Set(HeaderWebhookSignature, "hex_signature")

	h.Webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	mockLedger.EXPECT().HandleWebhook(gomock.Any(), gomock.Any(), "bad").
		Return(apperror.ErrInvalidSignature())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/wallet/webhook", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set(HeaderWebhookSignature, "bad")

	h.Webhook(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	mockLedger.EXPECT().Transfer(gomock.Any(), userID, "4562222222222", int64(2000)).Return(nil)

	body, _ := json.Marshal(dto.TransferRequest{WalletNumber: "4562222222222", Amount: 2000})
	c, w := walletTestContext(t, http.MethodPost, "/api/v1/wallet/transfer", body, userID)
	h.Transfer(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Transfer completed")
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	mockLedger.EXPECT().Transfer(gomock.Any(), userID, "4562222222222", int64(999999)).
		Return(apperror.ErrInsufficientFunds(100, 999999))

	body, _ := json.Marshal(dto.TransferRequest{WalletNumber: "4562222222222", Amount: 999999})
	c, w := walletTestContext(t, http.MethodPost, "/api/v1/wallet/transfer", body, userID)
	h.Transfer(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "WAL_002")
}

func TestListTransactions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	userID := uuid.New()
	recipient := "4562222222222"
	mockLedger.EXPECT().GetTransactions(gomock.Any(), userID).Return([]domain.Transaction{
		{
			Reference:             "TXN_b",
			Type:                  domain.TransactionTypeTransferOut,
			Amount:                2000,
			Status:                domain.TransactionStatusSuccess,
			RecipientWalletNumber: &recipient,
			CreatedAt:             time.Now(),
		},
	}, nil)

	c, w := walletTestContext(t, http.MethodGet, "/api/v1/wallet/transactions", nil, userID)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TXN_b")
	assert.Contains(t, w.Body.String(), recipient)
	// The irrelevant counterparty field is omitted entirely.
	assert.NotContains(t, w.Body.String(), "sender_wallet_number")
}

// --- Keys Handler Tests ---

func TestCreateKey_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockKeys := mocks.NewMockKeyService(ctrl)
	h := NewKeysHandler(mockKeys)

	userID := uuid.New()
	created := &ports.CreatedKey{
		ID:          uuid.New(),
		RawSecret:   "sk_secret_once",
		Name:        "ci-deploy",
		Permissions: domain.PermissionSet{domain.PermissionDeposit},
		ExpiresAt:   time.Now().Add(24 * time.Hour),
		CreatedAt:   time.Now(),
	}
	mockKeys.EXPECT().Create(gomock.Any(), userID, ports.CreateKeyRequest{
		Name:        "ci-deploy",
		Permissions: []domain.Permission{domain.PermissionDeposit},
		Expiry:      "1D",
	}).Return(created, nil)

	body, _ := json.Marshal(dto.CreateKeyRequest{
		Name:        "ci-deploy",
		Permissions: []string{"deposit"},
		Expiry:      "1D",
	})
	c, w := walletTestContext(t, http.MethodPost, "/api/v1/keys", body, userID)
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "sk_secret_once")
}

func TestCreateKey_RejectsUnknownPermission(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewKeysHandler(mocks.NewMockKeyService(ctrl))

	body, _ := json.Marshal(dto.CreateKeyRequest{
		Name:        "bad",
		Permissions: []string{"admin"},
		Expiry:      "1D",
	})
	c, w := walletTestContext(t, http.MethodPost, "/api/v1/keys", body, uuid.New())
	h.Create(c)

	// Rejected at binding: oneof=deposit transfer read.
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateKey_QuotaExceeded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockKeys := mocks.NewMockKeyService(ctrl)
	h := NewKeysHandler(mockKeys)

	userID := uuid.New()
	mockKeys.EXPECT().Create(gomock.Any(), userID, gomock.Any()).
		Return(nil, apperror.ErrKeyQuotaExceeded())

	body, _ := json.Marshal(dto.CreateKeyRequest{
		Name:        "one-too-many",
		Permissions: []string{"read"},
		Expiry:      "1H",
	})
	c, w := walletTestContext(t, http.MethodPost, "/api/v1/keys", body, userID)
	h.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "KEY_001")
}

func TestRolloverKey_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockKeys := mocks.NewMockKeyService(ctrl)
	h := NewKeysHandler(mockKeys)

	userID := uuid.New()
	expiredID := uuid.New()
	created := &ports.CreatedKey{
		ID:          uuid.New(),
		RawSecret:   "sk_new_secret",
		Name:        "payments (rolled over)",
		Permissions: domain.PermissionSet{domain.PermissionTransfer},
		ExpiresAt:   time.Now().Add(30 * 24 * time.Hour),
		CreatedAt:   time.Now(),
	}
	mockKeys.EXPECT().Rollover(gomock.Any(), userID, ports.RolloverKeyRequest{
		ExpiredKeyID: expiredID,
		Expiry:       "1M",
	}).Return(created, nil)

	body, _ := json.Marshal(dto.RolloverKeyRequest{ExpiredKeyID: expiredID.String(), Expiry: "1M"})
	c, w := walletTestContext(t, http.MethodPost, "/api/v1/keys/rollover", body, userID)
	h.Rollover(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "payments (rolled over)")
}

func TestRevokeKey_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockKeys := mocks.NewMockKeyService(ctrl)
	h := NewKeysHandler(mockKeys)

	userID := uuid.New()
	keyID := uuid.New()
	mockKeys.EXPECT().Revoke(gomock.Any(), keyID, userID).Return(apperror.ErrNotFound("API key"))

	c, w := walletTestContext(t, http.MethodDelete, "/api/v1/keys/"+keyID.String(), nil, userID)
	c.Params = gin.Params{{Key: "id", Value: keyID.String()}}
	h.Revoke(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListKeys_OmitsSecretMaterial(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockKeys := mocks.NewMockKeyService(ctrl)
	h := NewKeysHandler(mockKeys)

	userID := uuid.New()
	mockKeys.EXPECT().List(gomock.Any(), userID).Return([]domain.APIKey{
		{
			ID:        uuid.New(),
			KeyPrefix: "abcdef123456",
			KeyHash:   "$2a$10$supersecret",
			Name:      "ci-deploy",
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		},
	}, nil)

	c, w := walletTestContext(t, http.MethodGet, "/api/v1/keys", nil, userID)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "abcdef123456")
	assert.NotContains(t, w.Body.String(), "supersecret")
}
