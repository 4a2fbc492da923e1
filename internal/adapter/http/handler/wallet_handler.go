package handler

import (
	"io"
	"time"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderWebhookSignature carries the processor's HMAC-SHA512 hex signature
// over the raw request body.
const HeaderWebhookSignature = "x-paystack-signature"

// WalletHandler handles wallet ledger endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.ledgerSvc.GetBalance(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// InitiateDeposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) InitiateDeposit(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.ledgerSvc.InitializeDeposit(c.Request.Context(), userID.(uuid.UUID), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.DepositResponse{
		Reference:        result.Reference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
	})
}

// Webhook handles POST /api/v1/wallet/webhook. The signature is verified
// over the raw body bytes before any parsing.
func (h *WalletHandler) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("unreadable request body"))
		return
	}

	signature := c.GetHeader(HeaderWebhookSignature)
	if err := h.ledgerSvc.HandleWebhook(c.Request.Context(), rawBody, signature); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": "ok"})
}

// GetDepositStatus handles GET /api/v1/wallet/deposit/:reference/status.
func (h *WalletHandler) GetDepositStatus(c *gin.Context) {
	result, err := h.ledgerSvc.GetDepositStatus(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DepositStatusResponse{
		Reference: result.Reference,
		Status:    string(result.Status),
		Amount:    result.Amount,
	})
}

// Transfer handles POST /api/v1/wallet/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.ledgerSvc.Transfer(c.Request.Context(), userID.(uuid.UUID), req.WalletNumber, req.Amount); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TransferResponse{
		Status:  "success",
		Message: "Transfer completed",
	})
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	transactions, err := h.ledgerSvc.GetTransactions(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.TransactionResponse, len(transactions))
	for i, txn := range transactions {
		out[i] = dto.TransactionResponse{
			Type:                  string(txn.Type),
			Amount:                txn.Amount,
			Status:                string(txn.Status),
			Reference:             txn.Reference,
			RecipientWalletNumber: txn.RecipientWalletNumber,
			SenderWalletNumber:    txn.SenderWalletNumber,
			CreatedAt:             txn.CreatedAt.Format(time.RFC3339),
		}
	}

	response.OK(c, out)
}
