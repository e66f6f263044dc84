package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/auth"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AccountService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error

	Me(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	UpdateProfile(ctx context.Context, accountID uuid.UUID, req models.UpdateProfileRequest) (*models.Account, error)
	ChangePassword(ctx context.Context, accountID uuid.UUID, req models.ChangePasswordRequest) error

	// RequestOTP returns nil, nil for unknown identifiers.
	RequestOTP(ctx context.Context, req models.RequestOTPRequest) (*models.OTPIssue, error)
	VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.OTPResult, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	RequestContactVerification(ctx context.Context, accountID uuid.UUID, channel models.OtpChannel) (*models.OTPIssue, error)
	ConfirmContact(ctx context.Context, accountID uuid.UUID, channel models.OtpChannel, code string) (*models.Account, error)

	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error)
	SetRole(ctx context.Context, accountID uuid.UUID, role string) (*models.Account, error)
	SetActive(ctx context.Context, accountID uuid.UUID, active bool) (*models.Account, error)
}

type accountService struct {
	store  repository.Store
	tokens *auth.TokenManager
	otp    OTPService
	log    *zap.Logger
	now    func() time.Time
}

func NewAccountService(store repository.Store, tokens *auth.TokenManager, otp OTPService, log *zap.Logger) AccountService {
	return &accountService{store: store, tokens: tokens, otp: otp, log: log, now: time.Now}
}

func (s *accountService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	email := normalizeEmail(req.Email)
	phone := normalizePhone(req.Phone)
	if email == nil && phone == nil {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Email or phone is required")
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.WithDetails(apperrors.ErrWeakPassword, map[string]string{"password": err.Error()})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	account := &models.Account{
		Email:        email,
		Phone:        phone,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		IsActive:     true,
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if email != nil {
			if err := ensureUnused(tx.Accounts().FindByEmail(ctx, *email)); err != nil {
				return err
			}
		}
		if phone != nil {
			if err := ensureUnused(tx.Accounts().FindByPhone(ctx, *phone)); err != nil {
				return err
			}
		}
		role, err := tx.Roles().FindByName(ctx, models.RoleCustomer)
		if err != nil {
			return err
		}
		account.RoleID = role.ID
		account.Role = *role
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		return nil, dbError(err)
	}

	resp := &models.RegisterResponse{Account: account}
	issue, err := s.otp.Issue(ctx, account, models.OtpVerifyAccount, models.OtpChannel(req.Channel))
	switch {
	case err == nil:
		resp.OTPChannel = string(issue.Channel)
		resp.OTPDelivery = "sent"
	default:
		s.log.Warn("verification code not delivered at registration",
			zap.String("account_id", account.ID.String()), zap.Error(err))
		resp.OTPDelivery = "failed"
	}

	s.log.Info("account registered", zap.String("account_id", account.ID.String()))
	return resp, nil
}

func ensureUnused(_ *models.Account, err error) error {
	if err == nil {
		return apperrors.WithMessage(apperrors.ErrConflict, "An account with this email or phone already exists")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (s *accountService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	account, err := s.findByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, dbError(err)
	}
	if !auth.CheckPassword(account.PasswordHash, req.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}
	if !account.IsVerified() {
		return nil, apperrors.ErrNotVerified
	}
	return s.issueTokens(ctx, s.store, account)
}

func (s *accountService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	claims, err := s.tokens.ParseAndValidateToken(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	var pair *models.TokenPair
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		revoked, err := tx.Accounts().RevokeRefreshToken(ctx, claims.TokenID)
		if err != nil {
			return err
		}
		if !revoked {
			return apperrors.ErrInvalidToken
		}
		account, err := tx.Accounts().FindByID(ctx, claims.AccountID)
		if err != nil {
			return notFoundAs(err, apperrors.ErrInvalidToken)
		}
		if !account.IsActive {
			return apperrors.ErrAccountDisabled
		}
		pair, err = s.issueTokens(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, dbError(err)
	}
	return pair, nil
}

func (s *accountService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.ParseAndValidateToken(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		// Expired or malformed tokens are already unusable.
		return nil
	}
	_, err = s.store.Accounts().RevokeRefreshToken(ctx, claims.TokenID)
	return dbError(err)
}

func (s *accountService) Me(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrNotFound)
	}
	return account, nil
}

func (s *accountService) UpdateProfile(ctx context.Context, accountID uuid.UUID, req models.UpdateProfileRequest) (*models.Account, error) {
	account, err := s.Me(ctx, accountID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		account.Name = strings.TrimSpace(*req.Name)
		fields["name"] = account.Name
	}
	if req.Phone != nil {
		phone := normalizePhone(req.Phone)
		if phone == nil && account.EmailAddress() == "" {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, "Email or phone is required")
		}
		if !sameString(phone, account.Phone) {
			if phone != nil {
				if err := ensureUnused(s.store.Accounts().FindByPhone(ctx, *phone)); err != nil {
					return nil, dbError(err)
				}
			}
			account.Phone = phone
			account.PhoneVerifiedAt = nil
			fields["phone"] = phone
			fields["phone_verified_at"] = nil
		}
	}
	if len(fields) == 0 {
		return account, nil
	}
	if err := s.store.Accounts().UpdateFields(ctx, accountID, fields); err != nil {
		return nil, dbError(err)
	}
	return account, nil
}

func (s *accountService) ChangePassword(ctx context.Context, accountID uuid.UUID, req models.ChangePasswordRequest) error {
	account, err := s.Me(ctx, accountID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(account.PasswordHash, req.OldPassword) {
		return apperrors.ErrInvalidCredentials
	}
	return s.setPassword(ctx, account.ID, req.NewPassword)
}

func (s *accountService) setPassword(ctx context.Context, accountID uuid.UUID, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return apperrors.WithDetails(apperrors.ErrWeakPassword, map[string]string{"password": err.Error()})
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Accounts().UpdateFields(ctx, accountID, map[string]any{"password_hash": hash}); err != nil {
			return err
		}
		return tx.Accounts().RevokeAllRefreshTokens(ctx, accountID)
	})
	return dbError(err)
}

func (s *accountService) RequestOTP(ctx context.Context, req models.RequestOTPRequest) (*models.OTPIssue, error) {
	account, err := s.findByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Info("otp requested for unknown identifier", zap.String("purpose", string(req.Purpose)))
			return nil, nil
		}
		return nil, dbError(err)
	}
	if !account.IsActive {
		return nil, nil
	}
	return s.otp.Issue(ctx, account, req.Purpose, req.Channel)
}

func (s *accountService) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.OTPResult, error) {
	account, err := s.findByIdentifier(ctx, req.Identifier)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrOTPInvalid)
	}
	if !account.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}
	if req.Purpose == models.OtpResetPassword {
		if err := auth.ValidatePassword(req.NewPassword); err != nil {
			return nil, apperrors.WithDetails(apperrors.ErrWeakPassword, map[string]string{"new_password": err.Error()})
		}
	}

	otp, err := s.otp.Verify(ctx, account, req.Purpose, req.Code)
	if err != nil {
		return nil, err
	}

	result := &models.OTPResult{Purpose: req.Purpose, Verified: true}
	switch req.Purpose {
	case models.OtpVerifyAccount:
		if err := s.markVerified(ctx, account.ID, otp.Channel); err != nil {
			return nil, err
		}
	case models.OtpLogin:
		if (otp.Channel == models.ChannelEmail && account.EmailVerifiedAt == nil) ||
			(otp.Channel == models.ChannelSMS && account.PhoneVerifiedAt == nil) {
			if err := s.markVerified(ctx, account.ID, otp.Channel); err != nil {
				return nil, err
			}
		}
		pair, err := s.issueTokens(ctx, s.store, account)
		if err != nil {
			return nil, err
		}
		result.Tokens = pair
	case models.OtpResetPassword:
		if err := s.setPassword(ctx, account.ID, req.NewPassword); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *accountService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	_, err := s.VerifyOTP(ctx, models.VerifyOTPRequest{
		Identifier:  req.Identifier,
		Purpose:     models.OtpResetPassword,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	return err
}

func contactPurpose(channel models.OtpChannel) models.OtpPurpose {
	if channel == models.ChannelSMS {
		return models.OtpVerifyPhone
	}
	return models.OtpVerifyEmail
}

func (s *accountService) RequestContactVerification(ctx context.Context, accountID uuid.UUID, channel models.OtpChannel) (*models.OTPIssue, error) {
	account, err := s.Me(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.otp.Issue(ctx, account, contactPurpose(channel), channel)
}

func (s *accountService) ConfirmContact(ctx context.Context, accountID uuid.UUID, channel models.OtpChannel, code string) (*models.Account, error) {
	account, err := s.Me(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if _, err := s.otp.Verify(ctx, account, contactPurpose(channel), code); err != nil {
		return nil, err
	}
	if err := s.markVerified(ctx, account.ID, channel); err != nil {
		return nil, err
	}
	return s.Me(ctx, accountID)
}

func (s *accountService) markVerified(ctx context.Context, accountID uuid.UUID, channel models.OtpChannel) error {
	column := "email_verified_at"
	if channel == models.ChannelSMS {
		column = "phone_verified_at"
	}
	return dbError(s.store.Accounts().UpdateFields(ctx, accountID, map[string]any{column: s.now()}))
}

func (s *accountService) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error) {
	accounts, total, err := s.store.Accounts().List(ctx, filter)
	if err != nil {
		return nil, 0, dbError(err)
	}
	return accounts, total, nil
}

func (s *accountService) SetRole(ctx context.Context, accountID uuid.UUID, roleName string) (*models.Account, error) {
	role, err := s.store.Roles().FindByName(ctx, strings.ToLower(roleName))
	if err != nil {
		return nil, notFoundAs(err, apperrors.WithMessage(apperrors.ErrNotFound, "Role not found"))
	}
	if _, err := s.Me(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.store.Accounts().UpdateFields(ctx, accountID, map[string]any{"role_id": role.ID}); err != nil {
		return nil, dbError(err)
	}
	return s.Me(ctx, accountID)
}

func (s *accountService) SetActive(ctx context.Context, accountID uuid.UUID, active bool) (*models.Account, error) {
	if _, err := s.Me(ctx, accountID); err != nil {
		return nil, err
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Accounts().UpdateFields(ctx, accountID, map[string]any{"is_active": active}); err != nil {
			return err
		}
		if !active {
			return tx.Accounts().RevokeAllRefreshTokens(ctx, accountID)
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}
	return s.Me(ctx, accountID)
}

func (s *accountService) issueTokens(ctx context.Context, store repository.Store, account *models.Account) (*models.TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(account.ID, account.EmailAddress(), account.Role.Name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	refresh, jti, expiresAt, err := s.tokens.GenerateRefreshToken(account.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := store.Accounts().CreateRefreshToken(ctx, &models.RefreshToken{
		TokenID:   jti,
		AccountID: account.ID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, dbError(err)
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *accountService) findByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.store.Accounts().FindByEmail(ctx, strings.ToLower(identifier))
	}
	return s.store.Accounts().FindByPhone(ctx, strings.ReplaceAll(identifier, " ", ""))
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	if v == "" {
		return nil
	}
	return &v
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	v := strings.ReplaceAll(strings.TrimSpace(*phone), " ", "")
	if v == "" {
		return nil
	}
	return &v
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
