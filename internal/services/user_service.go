package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPhone        = errors.New("phone must be 10 to 15 digits")
	ErrInvalidOTP          = errors.New("invalid or expired code")
	ErrOTPAttemptsExceeded = errors.New("too many attempts, request a new code")
	ErrNoOTPTransport      = errors.New("no OTP delivery transport configured")
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// OTPSender delivers a one-time code to a phone number.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogOTPSender writes codes to the log. Only suitable for development:
// the code itself is logged at debug level only.
type LogOTPSender struct {
	Logger zerolog.Logger
}

// NewLogOTPSender refuses to build the log sender in production.
func NewLogOTPSender(production bool, logger zerolog.Logger) (LogOTPSender, error) {
	if production {
		return LogOTPSender{}, ErrNoOTPTransport
	}
	return LogOTPSender{Logger: logger}, nil
}

func (s LogOTPSender) SendOTP(_ context.Context, phone, code string) error {
	s.Logger.Info().Str("phone", phone).Msg("OTP issued")
	s.Logger.Debug().Str("phone", phone).Str("code", code).Msg("OTP code")
	return nil
}

type UserService struct {
	store       UserStore
	auth        *AuthService
	sender      OTPSender
	otpTTL      time.Duration
	maxAttempts int
	logger      zerolog.Logger
	now         func() time.Time
}

func NewUserService(store UserStore, auth *AuthService, sender OTPSender, otpTTL time.Duration, maxAttempts int, logger zerolog.Logger) *UserService {
	if otpTTL <= 0 {
		otpTTL = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &UserService{
		store:       store,
		auth:        auth,
		sender:      sender,
		otpTTL:      otpTTL,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// RequestOTP issues a fresh code for phone. Only a bcrypt hash of the code is stored.
func (s *UserService) RequestOTP(ctx context.Context, req models.OTPRequest) error {
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		s.logger.Error().Err(err).Msg("Error generating otp")
		return fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing otp")
		return fmt.Errorf("failed to hash code: %w", err)
	}

	if err := s.store.CreateOTP(ctx, phone, string(hash), s.now().Add(s.otpTTL)); err != nil {
		s.logger.Error().Err(err).Msg("Error storing otp")
		return err
	}

	if err := s.sender.SendOTP(ctx, phone, code); err != nil {
		s.logger.Error().Err(err).Msg("Error sending otp")
		return fmt.Errorf("failed to send code: %w", err)
	}
	return nil
}

// VerifyOTP checks code against the latest unconsumed OTP for phone. On success the
// code is consumed, the account is created if needed and a session token is issued.
func (s *UserService) VerifyOTP(ctx context.Context, req models.OTPVerifyRequest) (*models.AuthResponse, error) {
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, ErrInvalidOTP
	}

	otp, err := s.store.LatestOTP(ctx, phone)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching otp")
		return nil, err
	}
	if otp == nil || s.now().After(otp.ExpiresAt) {
		return nil, ErrInvalidOTP
	}
	if otp.Attempts >= s.maxAttempts {
		return nil, ErrOTPAttemptsExceeded
	}

	if err := bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)); err != nil {
		if incErr := s.store.IncrementOTPAttempts(ctx, otp.ID); incErr != nil {
			s.logger.Warn().Err(incErr).Msg("Failed to record otp attempt (non-critical)")
		}
		s.logger.Warn().Str("phone", phone).Msg("Failed OTP verification attempt")
		return nil, ErrInvalidOTP
	}

	consumed, err := s.store.ConsumeOTP(ctx, otp.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInvalidOTP
	}

	user, err := s.store.EnsureUser(ctx, phone)
	if err != nil {
		return nil, err
	}

	token, err := s.auth.GenerateToken(user.ID, user.Phone, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("User logged in")
	return &models.AuthResponse{User: user, Token: token}, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.store.GetUser(ctx, userID)
}

func normalizePhone(phone string) (string, error) {
	phone = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
