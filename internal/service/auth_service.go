package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// walletNumberDigits is the random tail appended to the configured prefix;
// prefix + tail form the 13-digit public transfer address.
const walletNumberDigits = 10

// AuthServiceImpl implements ports.AuthService. The OAuth exchange itself
// happens at the external identity provider; this service only provisions
// the local user and wallet for a profile the provider already verified.
type AuthServiceImpl struct {
	userRepo     ports.UserRepository
	walletRepo   ports.WalletRepository
	tokenSvc     ports.TokenService
	transactor   ports.DBTransactor
	numberPrefix string
	log          zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	tokenSvc ports.TokenService,
	transactor ports.DBTransactor,
	numberPrefix string,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:     userRepo,
		walletRepo:   walletRepo,
		tokenSvc:     tokenSvc,
		transactor:   transactor,
		numberPrefix: numberPrefix,
		log:          log,
	}
}

// HandleExternalLogin finds or creates the user for a verified external
// profile and issues a session token. User and wallet are created together
// in one database transaction on first login.
func (s *AuthServiceImpl) HandleExternalLogin(ctx context.Context, profile ports.ExternalProfile) (*ports.LoginResult, error) {
	if profile.Email == "" {
		return nil, apperror.Validation("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, profile.Email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}

	if user == nil {
		user, err = s.provision(ctx, profile)
		if err != nil {
			return nil, err
		}
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return &ports.LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// provision creates the user and their wallet atomically.
func (s *AuthServiceImpl) provision(ctx context.Context, profile ports.ExternalProfile) (*domain.User, error) {
	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New(),
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Picture:   profile.Picture,
		IsActive:  true,
		CreatedAt: now,
	}

	walletNumber, err := s.generateWalletNumber(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate wallet number: %w", err))
	}
	wallet := &domain.Wallet{
		ID:           uuid.New(),
		WalletNumber: walletNumber,
		Balance:      0,
		UserID:       user.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit provisioning: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("wallet_number", wallet.WalletNumber).
		Msg("user provisioned on first login")

	return user, nil
}

// generateWalletNumber produces a unique public transfer address,
// regenerating on the rare collision.
func (s *AuthServiceImpl) generateWalletNumber(ctx context.Context) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(walletNumberDigits), nil)
	for attempt := 0; attempt < 5; attempt++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		number := fmt.Sprintf("%s%0*d", s.numberPrefix, walletNumberDigits, n)
		existing, err := s.walletRepo.GetByWalletNumber(ctx, number)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return number, nil
		}
	}
	return "", fmt.Errorf("exhausted wallet number attempts")
}
