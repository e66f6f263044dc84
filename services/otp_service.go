package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/yashrajoria/storefront-api/cache"
	"github.com/yashrajoria/storefront-api/config"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
)

type OTPService interface {
	// Issue generates, stores and delivers a code. Earlier unused codes for
	// the same purpose stop working.
	Issue(ctx context.Context, account *models.Account, purpose models.OtpPurpose, preferred models.OtpChannel) (*models.OTPIssue, error)
	// Verify consumes a code and returns the row it matched.
	Verify(ctx context.Context, account *models.Account, purpose models.OtpPurpose, code string) (*models.Otp, error)
	// PurgeExpired deletes codes that expired more than otpRetention ago.
	PurgeExpired(ctx context.Context) (int64, error)
	// RunCleanup purges on every tick until ctx is done.
	RunCleanup(ctx context.Context, every time.Duration)
}

const otpRetention = 24 * time.Hour

type otpService struct {
	store    repository.Store
	guard    cache.Guard
	notifier Notifier
	metrics  MetricsRecorder
	cfg      config.OTPConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewOTPService(store repository.Store, guard cache.Guard, notifier Notifier, metrics MetricsRecorder, cfg config.OTPConfig, log *zap.Logger) OTPService {
	return &otpService{
		store:    store,
		guard:    guard,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

type deliveryPlan struct {
	primary        models.OtpChannel
	primaryTarget  string
	fallback       models.OtpChannel
	fallbackTarget string
}

func (p deliveryPlan) hasFallback() bool { return p.fallbackTarget != "" }

func targetFor(a *models.Account, ch models.OtpChannel) string {
	if ch == models.ChannelSMS {
		return a.PhoneNumber()
	}
	return a.EmailAddress()
}

// resolveChannels picks the primary channel and, when the account has the
// other contact too, a fallback.
func resolveChannels(a *models.Account, purpose models.OtpPurpose, preferred models.OtpChannel) (deliveryPlan, error) {
	switch purpose {
	case models.OtpVerifyEmail:
		if a.EmailAddress() == "" {
			return deliveryPlan{}, apperrors.ErrNoDeliveryChannel
		}
		return deliveryPlan{primary: models.ChannelEmail, primaryTarget: a.EmailAddress()}, nil
	case models.OtpVerifyPhone:
		if a.PhoneNumber() == "" {
			return deliveryPlan{}, apperrors.ErrNoDeliveryChannel
		}
		return deliveryPlan{primary: models.ChannelSMS, primaryTarget: a.PhoneNumber()}, nil
	}

	if preferred != models.ChannelSMS {
		preferred = models.ChannelEmail
	}
	plan := deliveryPlan{primary: preferred, primaryTarget: targetFor(a, preferred)}
	other := preferred.Other()
	otherTarget := targetFor(a, other)

	switch {
	case plan.primaryTarget != "" && otherTarget != "":
		plan.fallback, plan.fallbackTarget = other, otherTarget
	case plan.primaryTarget == "" && otherTarget != "":
		plan.primary, plan.primaryTarget = other, otherTarget
	case plan.primaryTarget == "":
		return deliveryPlan{}, apperrors.ErrNoDeliveryChannel
	}
	return plan, nil
}

func (s *otpService) Issue(ctx context.Context, account *models.Account, purpose models.OtpPurpose, preferred models.OtpChannel) (*models.OTPIssue, error) {
	plan, err := resolveChannels(account, purpose, preferred)
	if err != nil {
		return nil, err
	}

	cooldownKey := cache.OTPCooldownKey(account.ID.String(), string(purpose))
	acquired, err := s.guard.Acquire(ctx, cooldownKey, s.cfg.ResendCooldown)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if !acquired {
		left, _ := s.guard.Remaining(ctx, cooldownKey)
		return nil, apperrors.WithDetails(apperrors.ErrOTPCooldown, map[string]int{
			"retry_after_seconds": int(left.Round(time.Second) / time.Second),
		})
	}

	code, err := generateCode(s.cfg.Length)
	if err != nil {
		s.release(ctx, cooldownKey)
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	otp := &models.Otp{
		AccountID: account.ID,
		Purpose:   purpose,
		Channel:   plan.primary,
		Target:    plan.primaryTarget,
		CodeHash:  hashCode(code),
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Otps().InvalidateActive(ctx, account.ID, purpose); err != nil {
			return err
		}
		return tx.Otps().Create(ctx, otp)
	})
	if err != nil {
		s.release(ctx, cooldownKey)
		return nil, dbError(err)
	}

	subject, body := otpMessage(purpose, code, s.cfg.TTL)

	issue := &models.OTPIssue{Channel: plan.primary, Target: maskTarget(plan.primary, plan.primaryTarget), ExpiresAt: otp.ExpiresAt}
	_, sendErr := s.notifier.Send(ctx, plan.primary, plan.primaryTarget, subject, body)
	if sendErr != nil && plan.hasFallback() {
		s.log.Warn("otp delivery failed, trying fallback channel",
			zap.String("account_id", account.ID.String()),
			zap.String("purpose", string(purpose)),
			zap.String("channel", string(plan.primary)),
			zap.String("fallback", string(plan.fallback)),
			zap.Error(sendErr),
		)
		_, sendErr = s.notifier.Send(ctx, plan.fallback, plan.fallbackTarget, subject, body)
		if sendErr == nil {
			if err := s.store.Otps().UpdateChannel(ctx, otp.ID, plan.fallback, plan.fallbackTarget); err != nil {
				s.log.Error("failed to record otp fallback channel", zap.Error(err))
			}
			issue.Channel = plan.fallback
			issue.Target = maskTarget(plan.fallback, plan.fallbackTarget)
			issue.Fallback = true
			recordAsync(s.metrics, s.log, aws_pkg.MetricOTPFallback, map[string]string{"Channel": string(plan.fallback)})
		}
	}

	if sendErr != nil {
		if _, err := s.store.Otps().MarkUsed(ctx, otp.ID); err != nil {
			s.log.Error("failed to invalidate undelivered otp", zap.Error(err))
		}
		s.release(ctx, cooldownKey)
		s.log.Error("otp delivery failed on all channels",
			zap.String("account_id", account.ID.String()),
			zap.String("purpose", string(purpose)),
			zap.Error(sendErr),
		)
		return nil, apperrors.Wrap(apperrors.ErrDeliveryFailed, sendErr)
	}

	recordAsync(s.metrics, s.log, aws_pkg.MetricOTPIssued, map[string]string{"Purpose": string(purpose)})
	s.log.Info("otp issued",
		zap.String("account_id", account.ID.String()),
		zap.String("purpose", string(purpose)),
		zap.String("channel", string(issue.Channel)),
	)
	return issue, nil
}

func (s *otpService) Verify(ctx context.Context, account *models.Account, purpose models.OtpPurpose, code string) (*models.Otp, error) {
	otp, err := s.store.Otps().FindActive(ctx, account.ID, purpose)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrOTPInvalid)
	}

	if s.now().After(otp.ExpiresAt) {
		return nil, apperrors.ErrOTPExpired
	}

	// The attempt is taken before the compare so parallel guesses cannot
	// all pass a stale attempts count.
	allowed, err := s.store.Otps().ConsumeAttempt(ctx, otp.ID, s.cfg.MaxAttempts)
	if err != nil {
		return nil, dbError(err)
	}
	if !allowed {
		return nil, apperrors.ErrOTPTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(otp.CodeHash)) != 1 {
		return nil, apperrors.ErrOTPInvalid
	}

	ok, err := s.store.Otps().MarkUsed(ctx, otp.ID)
	if err != nil {
		return nil, dbError(err)
	}
	if !ok {
		return nil, apperrors.ErrOTPUsed
	}

	s.release(ctx, cache.OTPCooldownKey(account.ID.String(), string(purpose)))
	return otp, nil
}

func (s *otpService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.Otps().DeleteExpired(ctx, s.now().Add(-otpRetention))
	if err != nil {
		return 0, dbError(err)
	}
	return n, nil
}

func (s *otpService) RunCleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.Warn("otp cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("purged expired otps", zap.Int64("count", n))
			}
		}
	}
}

func (s *otpService) release(ctx context.Context, key string) {
	if err := s.guard.Release(ctx, key); err != nil {
		s.log.Warn("failed to release otp cooldown", zap.Error(err))
	}
}

func generateCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func otpMessage(purpose models.OtpPurpose, code string, ttl time.Duration) (subject, body string) {
	minutes := int(ttl.Minutes())
	switch purpose {
	case models.OtpResetPassword:
		subject = "Reset your password"
	case models.OtpLogin:
		subject = "Your sign-in code"
	default:
		subject = "Verify your account"
	}
	body = fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes)
	return subject, body
}

// maskTarget hides most of an address or number.
func maskTarget(ch models.OtpChannel, target string) string {
	if ch == models.ChannelSMS {
		if len(target) <= 4 {
			return strings.Repeat("*", len(target))
		}
		return strings.Repeat("*", len(target)-4) + target[len(target)-4:]
	}
	local, domain, ok := strings.Cut(target, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
