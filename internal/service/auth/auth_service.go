package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/internal/service/otp"
	"storefront/internal/utils"
	"storefront/pkg/limiter"
	"storefront/pkg/log"
	pkgutils "storefront/pkg/utils"
)

// RequestCodeRequest asks for a login code
type RequestCodeRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,phone"`
}

// VerifyRequest submits a login code
type VerifyRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,phone"`
	Code        string `json:"code" binding:"required,max=8"`
}

// IssuedCode is returned to whoever requested a code
type IssuedCode struct {
	PhoneNumber string `json:"phone_number"`
	Channel     string `json:"channel"`
	// Code is only set by the insecure demo channel
	Code string `json:"code,omitempty"`
}

// Session is the result of a successful login
type Session struct {
	User        *model.Identity `json:"user"`
	AccessToken string          `json:"access_token"`
	ExpiresIn   int64           `json:"expires_in"`
	TokenType   string          `json:"token_type"`
}

// Config auth service configuration
type Config struct {
	OwnerPhone    string
	LoginLatency  time.Duration
	VerifyLatency time.Duration
}

// AuthService authentication service interface
type AuthService interface {
	// RequestCode issues a login code for phone and hands it to the channel
	RequestCode(ctx context.Context, phone string) (*IssuedCode, error)

	// VerifyCode returns the identity for phone, or nil when code is wrong
	VerifyCode(ctx context.Context, phone, code string) (*model.Identity, error)

	// Login verifies code and issues an access token
	Login(ctx context.Context, phone, code string) (*Session, error)

	// ValidateToken resolves an access token to an identity
	ValidateToken(ctx context.Context, token string) (*model.Identity, error)
}

// authService authentication service implementation
type authService struct {
	codes      *otp.Manager
	channel    otp.Channel
	limiter    limiter.RateLimiter
	jwtManager *utils.JWTManager
	metrics    *monitor.Metrics
	cfg        Config
}

// NewAuthService creates an authentication service
func NewAuthService(
	codes *otp.Manager,
	channel otp.Channel,
	issueLimiter limiter.RateLimiter,
	jwtManager *utils.JWTManager,
	metrics *monitor.Metrics,
	cfg Config,
) AuthService {
	if issueLimiter == nil {
		issueLimiter = limiter.Unlimited{}
	}
	if channel == nil {
		channel = otp.DiscardChannel{}
	}
	return &authService{
		codes:      codes,
		channel:    channel,
		limiter:    issueLimiter,
		jwtManager: jwtManager,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// IdentityFor derives the identity of a phone number. Identities are never
// stored, so the same phone always yields the same identity.
func IdentityFor(phone, ownerPhone string) *model.Identity {
	phone = strings.TrimSpace(phone)
	id := &model.Identity{
		ID:          "u_" + phone,
		PhoneNumber: phone,
		Role:        model.RoleRegular,
		DisplayName: "User " + pkgutils.LastN(phone, 4),
	}
	if phone == ownerPhone {
		id.Role = model.RoleOwner
		id.DisplayName = "Store Owner"
	}
	return id
}

// RequestCode issues a login code
func (s *authService) RequestCode(ctx context.Context, phone string) (*IssuedCode, error) {
	phone = strings.TrimSpace(phone)
	logger := log.FromContext(ctx).WithField("phone", pkgutils.MaskPhone(phone))

	allowed, err := s.limiter.Allow(ctx, phone)
	if err != nil {
		logger.WithError(err).Error("OTP issue limiter unavailable")
		return nil, pkgutils.NewErrorWithErr(pkgutils.CodeServiceError, "login is temporarily unavailable", err)
	}
	if !allowed {
		s.metrics.RecordOTPThrottled()
		logger.Warn("OTP issue throttled")
		return nil, pkgutils.ErrRateLimit
	}

	if err := s.wait(ctx, s.cfg.LoginLatency); err != nil {
		return nil, err
	}

	code, err := s.codes.Issue(ctx, phone)
	if err != nil {
		logger.WithError(err).Error("Failed to issue OTP")
		return nil, err
	}

	shown, err := s.channel.Deliver(ctx, phone, code)
	if err != nil {
		logger.WithError(err).Error("Failed to deliver OTP")
		return nil, pkgutils.NewErrorWithErr(pkgutils.CodeServiceError, "failed to deliver code", err)
	}
	s.metrics.RecordOTPIssued(s.channel.Name())

	return &IssuedCode{
		PhoneNumber: phone,
		Channel:     s.channel.Name(),
		Code:        shown,
	}, nil
}

// VerifyCode verifies a login code. A wrong code is an ordinary negative
// outcome and returns a nil identity without an error.
func (s *authService) VerifyCode(ctx context.Context, phone, code string) (*model.Identity, error) {
	if err := s.wait(ctx, s.cfg.VerifyLatency); err != nil {
		return nil, err
	}

	ok, err := s.codes.Verify(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordOTPVerify(ok)
	if !ok {
		log.FromContext(ctx).WithField("phone", pkgutils.MaskPhone(phone)).Info("OTP verification failed")
		return nil, nil
	}

	return IdentityFor(phone, s.cfg.OwnerPhone), nil
}

// Login verifies a code and issues an access token
func (s *authService) Login(ctx context.Context, phone, code string) (*Session, error) {
	identity, err := s.VerifyCode(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, pkgutils.NewError(pkgutils.CodeUnauthorized, "invalid or expired code")
	}

	token, err := s.jwtManager.GenerateAccessToken(identity.ID, identity.PhoneNumber, string(identity.Role))
	if err != nil {
		return nil, pkgutils.NewErrorWithErr(pkgutils.CodeInternalError, "failed to issue token", err)
	}

	log.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id": identity.ID,
		"role":    identity.Role,
	}).Info("User logged in")

	return &Session{
		User:        identity,
		AccessToken: token,
		ExpiresIn:   int64(s.jwtManager.AccessExpire().Seconds()),
		TokenType:   "Bearer",
	}, nil
}

// ValidateToken validates a token
func (s *authService) ValidateToken(_ context.Context, token string) (*model.Identity, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, pkgutils.NewErrorWithErr(pkgutils.CodeUnauthorized, "invalid token", err)
	}

	// role follows the configured owner phone, not the claim
	return IdentityFor(claims.PhoneNumber, s.cfg.OwnerPhone), nil
}

func (s *authService) wait(ctx context.Context, d time.Duration) error {
	if err := pkgutils.SleepContext(ctx, d); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return pkgutils.NewErrorWithErr(pkgutils.CodeTimeout, "request cancelled", err)
		}
		return err
	}
	return nil
}
