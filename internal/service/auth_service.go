package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"messmate/internal/auth"
	"messmate/internal/cache"
	"messmate/internal/errors"
	"messmate/internal/mailer"
	"messmate/internal/model"
	"messmate/internal/otp"
	"messmate/internal/queue"
	"messmate/internal/repository"
)

const profileCacheTTL = 5 * time.Minute

// ChallengeLimiter throttles OTP issuance and validation attempts.
type ChallengeLimiter interface {
	AllowSend(ctx context.Context, email string) error
	AllowVerify(ctx context.Context, email string) error
	ResetVerify(ctx context.Context, email string)
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
	Phone    string
}

// UpdateProfileInput carries a partial profile update.
type UpdateProfileInput struct {
	Name  *string
	Phone *string
}

// AuthService drives the account lifecycle: registration, OTP verification,
// login, and password recovery.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	VerifyAccount(ctx context.Context, email, code string) error
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (token string, user *model.User, err error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyPasswordResetOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	Profile(ctx context.Context, userID uint) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*model.User, error)
}

type authService struct {
	users      repository.UserRepository
	codes      *otp.Generator
	jwtService *auth.JWTService
	limiter    ChallengeLimiter
	mail       mailer.Mailer
	events     *queue.Producer
	cache      *cache.Client
	bcryptCost int
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	codes *otp.Generator,
	jwtService *auth.JWTService,
	limiter ChallengeLimiter,
	mail mailer.Mailer,
	events *queue.Producer,
	cacheClient *cache.Client,
	bcryptCost int,
) AuthService {
	return &authService{
		users:      users,
		codes:      codes,
		jwtService: jwtService,
		limiter:    limiter,
		mail:       mail,
		events:     events,
		cache:      cacheClient,
		bcryptCost: bcryptCost,
	}
}

// NormalizeEmail lowercases and trims an email so lookups are
// case-insensitive end to end.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) profileCacheKey(id uint) string {
	return fmt.Sprintf("user:profile:%d", id)
}

// Register creates an unverified user with a fresh challenge and delivers the
// code best-effort: a mail failure is logged but never rolls back the account.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := NormalizeEmail(in.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, errors.ErrDuplicateEmail
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, expiry, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}

	user := &model.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
		Phone:        strings.TrimSpace(in.Phone),
		IsVerified:   false,
		IsActive:     true,
		OTP:          &code,
		OTPExpiry:    &expiry,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.mail.SendOTP(ctx, email, user.Name, code, mailer.PurposeVerify); err != nil {
		log.Printf("register: otp mail to %s failed: %v", email, err)
	}

	s.events.Publish(queue.EventUserRegistered, user.ID, email)
	return user, nil
}

// VerifyAccount validates the challenge and flips the account to verified,
// consuming the code in one conditional update.
func (s *authService) VerifyAccount(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)

	if err := s.limiter.AllowVerify(ctx, email); err != nil {
		return err
	}

	user, err := s.users.FindByEmailWithSecrets(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.IsVerified {
		return errors.ErrAlreadyVerified
	}

	now := time.Now()
	if err := otp.Validate(code, user.OTP, user.OTPExpiry, now); err != nil {
		return err
	}

	ok, err := s.users.ConsumeChallengeVerify(ctx, user.ID, strings.TrimSpace(code), now)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if !ok {
		// Challenge superseded between the read and the update.
		return otp.ErrInvalidCode
	}

	s.limiter.ResetVerify(ctx, email)
	_ = s.cache.Delete(ctx, s.profileCacheKey(user.ID))
	s.events.Publish(queue.EventUserVerified, user.ID, email)
	return nil
}

// ResendOTP issues a fresh challenge, invalidating the previous code. Unlike
// registration, delivery failure fails the call: the user has no other path
// to the code.
func (s *authService) ResendOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.IsVerified {
		return errors.ErrAlreadyVerified
	}

	if err := s.limiter.AllowSend(ctx, email); err != nil {
		return err
	}

	code, expiry, err := s.codes.Generate()
	if err != nil {
		return err
	}
	if err := s.users.SetChallenge(ctx, user.ID, code, expiry); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}

	if err := s.mail.SendOTP(ctx, email, user.Name, code, mailer.PurposeVerify); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDeliveryFailed, err)
	}
	return nil
}

// Login authenticates a verified, active account and issues a session token.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	email = NormalizeEmail(email)

	user, err := s.users.FindByEmailWithSecrets(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil, errors.ErrUserNotFound
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsVerified {
		return "", nil, errors.ErrNotVerified
	}
	if !user.IsActive {
		return "", nil, errors.ErrDeactivated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, errors.ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return "", nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now
	_ = s.cache.Delete(ctx, s.profileCacheKey(user.ID))

	token, err := s.jwtService.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	// Strip secrets before the record leaves the service.
	user.PasswordHash = ""
	user.OTP = nil
	user.OTPExpiry = nil
	return token, user, nil
}

// ForgotPassword issues a reset challenge to a verified account. Delivery
// failure fails the call.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}
	if !user.IsVerified {
		return errors.ErrNotVerified
	}

	if err := s.limiter.AllowSend(ctx, email); err != nil {
		return err
	}

	code, expiry, err := s.codes.Generate()
	if err != nil {
		return err
	}
	if err := s.users.SetChallenge(ctx, user.ID, code, expiry); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}

	if err := s.mail.SendOTP(ctx, email, user.Name, code, mailer.PurposeReset); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDeliveryFailed, err)
	}
	return nil
}

// VerifyPasswordResetOTP checks the challenge without consuming it, so the
// code stays valid through the subsequent ResetPassword call.
func (s *authService) VerifyPasswordResetOTP(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)

	if err := s.limiter.AllowVerify(ctx, email); err != nil {
		return err
	}

	user, err := s.users.FindByEmailWithSecrets(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	if err := otp.Validate(code, user.OTP, user.OTPExpiry, time.Now()); err != nil {
		return err
	}

	s.limiter.ResetVerify(ctx, email)
	return nil
}

// ResetPassword re-validates the challenge, including expiry, at the final
// step. A prior VerifyPasswordResetOTP success is never trusted as cached.
func (s *authService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = NormalizeEmail(email)

	user, err := s.users.FindByEmailWithSecrets(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	now := time.Now()
	if err := otp.Validate(code, user.OTP, user.OTPExpiry, now); err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)) == nil {
		return errors.ErrSamePassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ok, err := s.users.ConsumeChallengeSetPassword(ctx, user.ID, strings.TrimSpace(code), now, string(hashed))
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if !ok {
		return otp.ErrInvalidCode
	}

	_ = s.cache.Delete(ctx, s.profileCacheKey(user.ID))
	s.events.Publish(queue.EventPasswordReset, user.ID, email)
	return nil
}

// Profile returns the safe projection of a user, cache-aside with a short TTL.
func (s *authService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.profileCacheKey(userID)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.profileCacheKey(userID), payload, profileCacheTTL)
	}
	return user, nil
}

// UpdateProfile applies a partial update to the mutable profile fields.
func (s *authService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	_ = s.cache.Delete(ctx, s.profileCacheKey(userID))
	return user, nil
}
