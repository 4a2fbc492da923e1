package handler

import (
	"time"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KeysHandler handles API key lifecycle endpoints. These are reachable only
// with a session token; a key cannot mint or revoke other keys.
type KeysHandler struct {
	keySvc ports.KeyService
}

// NewKeysHandler creates a new KeysHandler.
func NewKeysHandler(keySvc ports.KeyService) *KeysHandler {
	return &KeysHandler{keySvc: keySvc}
}

// Create handles POST /api/v1/keys.
func (h *KeysHandler) Create(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	permissions := make([]domain.Permission, len(req.Permissions))
	for i, p := range req.Permissions {
		permissions[i] = domain.Permission(p)
	}

	created, err := h.keySvc.Create(c.Request.Context(), userID.(uuid.UUID), ports.CreateKeyRequest{
		Name:        req.Name,
		Permissions: permissions,
		Expiry:      req.Expiry,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toCreatedKeyResponse(created))
}

// Rollover handles POST /api/v1/keys/rollover. The replacement inherits the
// expired key's permissions; the expired key itself is left untouched.
func (h *KeysHandler) Rollover(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RolloverKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	expiredKeyID, err := uuid.Parse(req.ExpiredKeyID)
	if err != nil {
		response.Error(c, apperror.Validation("expired_key_id must be a valid UUID"))
		return
	}

	created, err := h.keySvc.Rollover(c.Request.Context(), userID.(uuid.UUID), ports.RolloverKeyRequest{
		ExpiredKeyID: expiredKeyID,
		Expiry:       req.Expiry,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toCreatedKeyResponse(created))
}

// Revoke handles DELETE /api/v1/keys/:id.
func (h *KeysHandler) Revoke(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("key id must be a valid UUID"))
		return
	}

	if err := h.keySvc.Revoke(c.Request.Context(), keyID, userID.(uuid.UUID)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RevokeResponse{Message: "API key revoked"})
}

// List handles GET /api/v1/keys.
func (h *KeysHandler) List(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keys, err := h.keySvc.List(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.KeyResponse, len(keys))
	for i, key := range keys {
		out[i] = dto.KeyResponse{
			ID:        key.ID.String(),
			Name:      key.Name,
			KeyPrefix: key.KeyPrefix,
			ExpiresAt: key.ExpiresAt.Format(time.RFC3339),
			Revoked:   key.Revoked,
			CreatedAt: key.CreatedAt.Format(time.RFC3339),
		}
	}

	response.OK(c, out)
}

func toCreatedKeyResponse(created *ports.CreatedKey) dto.CreatedKeyResponse {
	return dto.CreatedKeyResponse{
		ID:          created.ID.String(),
		APIKey:      created.RawSecret,
		Name:        created.Name,
		Permissions: dto.PermissionStrings(created.Permissions),
		ExpiresAt:   created.ExpiresAt.Format(time.RFC3339),
		CreatedAt:   created.CreatedAt.Format(time.RFC3339),
	}
}
