package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"messmate/internal/auth"
	"messmate/internal/errors"
	"messmate/internal/mailer"
	"messmate/internal/model"
	"messmate/internal/otp"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmailWithSecrets(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockUserRepository) SetChallenge(ctx context.Context, id uint, code string, expiry time.Time) error {
	args := m.Called(ctx, id, code, expiry)
	return args.Error(0)
}

func (m *MockUserRepository) ConsumeChallengeVerify(ctx context.Context, id uint, code string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, code, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ConsumeChallengeSetPassword(ctx context.Context, id uint, code string, now time.Time, passwordHash string) (bool, error) {
	args := m.Called(ctx, id, code, now, passwordHash)
	return args.Bool(0), args.Error(1)
}

// MockMailer is a mock implementation of mailer.Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendOTP(ctx context.Context, to, name, code string, purpose mailer.Purpose) error {
	args := m.Called(ctx, to, name, code, purpose)
	return args.Error(0)
}

// MockLimiter is a mock implementation of ChallengeLimiter.
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) AllowSend(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockLimiter) AllowVerify(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockLimiter) ResetVerify(ctx context.Context, email string) {
	m.Called(ctx, email)
}

func openLimiter() *MockLimiter {
	l := new(MockLimiter)
	l.On("AllowSend", mock.Anything, mock.Anything).Return(nil).Maybe()
	l.On("AllowVerify", mock.Anything, mock.Anything).Return(nil).Maybe()
	l.On("ResetVerify", mock.Anything, mock.Anything).Return().Maybe()
	return l
}

func newTestService(repo *MockUserRepository, mail *MockMailer, limiter *MockLimiter) AuthService {
	return NewAuthService(
		repo,
		otp.NewGenerator(10*time.Minute),
		auth.NewJWTService("test-secret", time.Hour),
		limiter,
		mail,
		nil, // inert producer
		nil, // no cache
		bcrypt.MinCost,
	)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	return string(h)
}

func challenge(code string, expiry time.Time) (*string, *time.Time) {
	return &code, &expiry
}

func TestRegister_Success(t *testing.T) {
	repo := new(MockUserRepository)
	mail := new(MockMailer)
	svc := newTestService(repo, mail, openLimiter())

	repo.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, gorm.ErrRecordNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
	mail.On("SendOTP", mock.Anything, "new@example.com", "Alice", mock.AnythingOfType("string"), mailer.PurposeVerify).Return(nil)

	user, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "  New@Example.COM ",
		Password: "password123",
	})

	assert.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.False(t, user.IsVerified)
	assert.True(t, user.IsActive)
	assert.NotNil(t, user.OTP)
	assert.True(t, otp.WellFormed(*user.OTP))
	assert.NotNil(t, user.OTPExpiry)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	repo.AssertExpectations(t)
	mail.AssertExpectations(t)
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	repo := new(MockUserRepository)
	mail := new(MockMailer)
	svc := newTestService(repo, mail, openLimiter())

	repo.On("FindByEmail", mock.Anything, "taken@example.com").
		Return(&model.User{ID: 1, Email: "taken@example.com"}, nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Bob",
		Email:    "Taken@Example.com",
		Password: "password123",
	})

	assert.ErrorIs(t, err, errors.ErrDuplicateEmail)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_MailFailureDoesNotFail(t *testing.T) {
	repo := new(MockUserRepository)
	mail := new(MockMailer)
	svc := newTestService(repo, mail, openLimiter())

	repo.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, gorm.ErrRecordNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
	mail.On("SendOTP", mock.Anything, "new@example.com", "Alice", mock.AnythingOfType("string"), mailer.PurposeVerify).
		Return(assert.AnError)

	user, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "new@example.com",
		Password: "password123",
	})

	assert.NoError(t, err)
	assert.NotNil(t, user)
}

func TestVerifyAccount_Success(t *testing.T) {
	repo := new(MockUserRepository)
	limiter := openLimiter()
	svc := newTestService(repo, new(MockMailer), limiter)

	code, expiry := challenge("123456", time.Now().Add(5*time.Minute))
	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Email: "user@example.com", OTP: code, OTPExpiry: expiry}, nil)
	repo.On("ConsumeChallengeVerify", mock.Anything, uint(7), "123456", mock.AnythingOfType("time.Time")).
		Return(true, nil)

	err := svc.VerifyAccount(context.Background(), "User@Example.com", " 123456 ")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
	limiter.AssertCalled(t, "ResetVerify", mock.Anything, "user@example.com")
}

func TestVerifyAccount_WrongCode(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	code, expiry := challenge("123456", time.Now().Add(5*time.Minute))
	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Email: "user@example.com", OTP: code, OTPExpiry: expiry}, nil)

	err := svc.VerifyAccount(context.Background(), "user@example.com", "654321")
	assert.ErrorIs(t, err, otp.ErrInvalidCode)
	repo.AssertNotCalled(t, "ConsumeChallengeVerify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAccount_ExpiredCode(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	code, expiry := challenge("123456", time.Now().Add(-time.Minute))
	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Email: "user@example.com", OTP: code, OTPExpiry: expiry}, nil)

	err := svc.VerifyAccount(context.Background(), "user@example.com", "123456")
	assert.ErrorIs(t, err, otp.ErrExpiredCode)
}

func TestVerifyAccount_AlreadyVerified(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Email: "user@example.com", IsVerified: true}, nil)

	err := svc.VerifyAccount(context.Background(), "user@example.com", "123456")
	assert.ErrorIs(t, err, errors.ErrAlreadyVerified)
}

func TestVerifyAccount_ChallengeSupersededConcurrently(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	// The read sees a matching code, but a concurrent resend replaces it
	// before the conditional update lands.
	code, expiry := challenge("123456", time.Now().Add(5*time.Minute))
	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Email: "user@example.com", OTP: code, OTPExpiry: expiry}, nil)
	repo.On("ConsumeChallengeVerify", mock.Anything, uint(7), "123456", mock.AnythingOfType("time.Time")).
		Return(false, nil)

	err := svc.VerifyAccount(context.Background(), "user@example.com", "123456")
	assert.ErrorIs(t, err, otp.ErrInvalidCode)
}

func TestVerifyAccount_RateLimited(t *testing.T) {
	repo := new(MockUserRepository)
	limiter := new(MockLimiter)
	limiter.On("AllowVerify", mock.Anything, "user@example.com").Return(errors.ErrRateLimited)
	svc := newTestService(repo, new(MockMailer), limiter)

	err := svc.VerifyAccount(context.Background(), "user@example.com", "123456")
	assert.ErrorIs(t, err, errors.ErrRateLimited)
	repo.AssertNotCalled(t, "FindByEmailWithSecrets", mock.Anything, mock.Anything)
}

func TestResendOTP_InvalidatesPreviousCode(t *testing.T) {
	repo := new(MockUserRepository)
	mail := new(MockMailer)
	svc := newTestService(repo, mail, openLimiter())

	repo.On("FindByEmail", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Name: "Alice", Email: "user@example.com"}, nil)
	repo.On("SetChallenge", mock.Anything, uint(7), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(nil)
	mail.On("SendOTP", mock.Anything, "user@example.com", "Alice", mock.AnythingOfType("string"), mailer.PurposeVerify).
		Return(nil)

	err := svc.ResendOTP(context.Background(), "user@example.com")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
	mail.AssertExpectations(t)
}

func TestResendOTP_DeliveryFailure(t *testing.T) {
	repo := new(MockUserRepository)
	mail := new(MockMailer)
	svc := newTestService(repo, mail, openLimiter())

	repo.On("FindByEmail", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Name: "Alice", Email: "user@example.com"}, nil)
	repo.On("SetChallenge", mock.Anything, uint(7), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(nil)
	mail.On("SendOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)

	err := svc.ResendOTP(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, errors.ErrDeliveryFailed)
}

func TestResendOTP_AlreadyVerified(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByEmail", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Email: "user@example.com", IsVerified: true}, nil)

	err := svc.ResendOTP(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, errors.ErrAlreadyVerified)
	repo.AssertNotCalled(t, "SetChallenge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_Success(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{
			ID:           7,
			Email:        "user@example.com",
			PasswordHash: hashOf(t, "password123"),
			Role:         model.RoleMessOwner,
			IsVerified:   true,
			IsActive:     true,
		}, nil)
	repo.On("UpdateLastLogin", mock.Anything, uint(7), mock.AnythingOfType("time.Time")).Return(nil)

	token, user, err := svc.Login(context.Background(), "user@example.com", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotNil(t, user.LastLogin)
	assert.Empty(t, user.PasswordHash)
	assert.Nil(t, user.OTP)

	claims, err := auth.NewJWTService("test-secret", time.Hour).Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, string(model.RoleMessOwner), claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{
			ID:           7,
			Email:        "user@example.com",
			PasswordHash: hashOf(t, "password123"),
			IsVerified:   true,
			IsActive:     true,
		}, nil)

	_, _, err := svc.Login(context.Background(), "user@example.com", "wrong-password")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	repo.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_UnverifiedAccount(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{
			ID:           7,
			Email:        "user@example.com",
			PasswordHash: hashOf(t, "password123"),
			IsVerified:   false,
			IsActive:     true,
		}, nil)

	// Verification gating is checked before the password: an unverified
	// account with correct credentials is still rejected.
	_, _, err := svc.Login(context.Background(), "user@example.com", "password123")
	assert.ErrorIs(t, err, errors.ErrNotVerified)
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{
			ID:           7,
			Email:        "user@example.com",
			PasswordHash: hashOf(t, "password123"),
			IsVerified:   true,
			IsActive:     false,
		}, nil)

	_, _, err := svc.Login(context.Background(), "user@example.com", "password123")
	assert.ErrorIs(t, err, errors.ErrDeactivated)
}

func TestLogin_UnknownEmail(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByEmailWithSecrets", mock.Anything, "ghost@example.com").
		Return(nil, gorm.ErrRecordNotFound)

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "password123")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestForgotPassword_RequiresVerifiedAccount(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByEmail", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Email: "user@example.com", IsVerified: false}, nil)

	err := svc.ForgotPassword(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, errors.ErrNotVerified)
}

func TestForgotPassword_Success(t *testing.T) {
	repo := new(MockUserRepository)
	mail := new(MockMailer)
	svc := newTestService(repo, mail, openLimiter())

	repo.On("FindByEmail", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Name: "Alice", Email: "user@example.com", IsVerified: true}, nil)
	repo.On("SetChallenge", mock.Anything, uint(7), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(nil)
	mail.On("SendOTP", mock.Anything, "user@example.com", "Alice", mock.AnythingOfType("string"), mailer.PurposeReset).
		Return(nil)

	err := svc.ForgotPassword(context.Background(), "user@example.com")
	assert.NoError(t, err)
	mail.AssertExpectations(t)
}

func TestVerifyPasswordResetOTP_DoesNotConsume(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	code, expiry := challenge("123456", time.Now().Add(5*time.Minute))
	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{ID: 7, Email: "user@example.com", IsVerified: true, OTP: code, OTPExpiry: expiry}, nil)

	err := svc.VerifyPasswordResetOTP(context.Background(), "user@example.com", "123456")
	assert.NoError(t, err)
	repo.AssertNotCalled(t, "ConsumeChallengeVerify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ConsumeChallengeSetPassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SetChallenge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_Success(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	code, expiry := challenge("123456", time.Now().Add(5*time.Minute))
	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{
			ID:           7,
			Email:        "user@example.com",
			PasswordHash: hashOf(t, "old-password"),
			IsVerified:   true,
			OTP:          code,
			OTPExpiry:    expiry,
		}, nil)
	repo.On("ConsumeChallengeSetPassword", mock.Anything, uint(7), "123456",
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("string")).Return(true, nil)

	err := svc.ResetPassword(context.Background(), "user@example.com", "123456", "brand-new-pass")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestResetPassword_ExpiredBetweenVerifyAndReset(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	// The code was valid when verify-password-reset-otp ran, but has since
	// expired. Reset must re-check and refuse.
	code, expiry := challenge("123456", time.Now().Add(-time.Second))
	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{
			ID:           7,
			Email:        "user@example.com",
			PasswordHash: hashOf(t, "old-password"),
			IsVerified:   true,
			OTP:          code,
			OTPExpiry:    expiry,
		}, nil)

	err := svc.ResetPassword(context.Background(), "user@example.com", "123456", "brand-new-pass")
	assert.ErrorIs(t, err, otp.ErrExpiredCode)
	repo.AssertNotCalled(t, "ConsumeChallengeSetPassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_SamePassword(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	code, expiry := challenge("123456", time.Now().Add(5*time.Minute))
	repo.On("FindByEmailWithSecrets", mock.Anything, "user@example.com").
		Return(&model.User{
			ID:           7,
			Email:        "user@example.com",
			PasswordHash: hashOf(t, "password123"),
			IsVerified:   true,
			OTP:          code,
			OTPExpiry:    expiry,
		}, nil)

	err := svc.ResetPassword(context.Background(), "user@example.com", "123456", "password123")
	assert.ErrorIs(t, err, errors.ErrSamePassword)
}

func TestProfile_NotFound(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByID", mock.Anything, uint(42)).Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Profile(context.Background(), 42)
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestUpdateProfile_PartialUpdate(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMailer), openLimiter())

	repo.On("FindByID", mock.Anything, uint(7)).
		Return(&model.User{ID: 7, Name: "Alice", Phone: "111"}, nil)
	repo.On("UpdateProfile", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

	name := "Alice B"
	user, err := svc.UpdateProfile(context.Background(), 7, UpdateProfileInput{Name: &name})
	assert.NoError(t, err)
	assert.Equal(t, "Alice B", user.Name)
	assert.Equal(t, "111", user.Phone)
}

// memUserRepository is a stateful in-memory store so a whole lifecycle can
// run as one sequence against shared state.
type memUserRepository struct {
	users  map[uint]*model.User
	nextID uint
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: map[uint]*model.User{}, nextID: 1}
}

func (r *memUserRepository) Create(_ context.Context, user *model.User) error {
	user.ID = r.nextID
	r.nextID++
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepository) byEmail(email string) *model.User {
	for _, u := range r.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (r *memUserRepository) FindByID(_ context.Context, id uint) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *u
	clone.PasswordHash = ""
	clone.OTP = nil
	clone.OTPExpiry = nil
	return &clone, nil
}

func (r *memUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	u := r.byEmail(email)
	if u == nil {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *u
	clone.PasswordHash = ""
	clone.OTP = nil
	clone.OTPExpiry = nil
	return &clone, nil
}

func (r *memUserRepository) FindByEmailWithSecrets(_ context.Context, email string) (*model.User, error) {
	u := r.byEmail(email)
	if u == nil {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepository) UpdateProfile(_ context.Context, user *model.User) error {
	u, ok := r.users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Name = user.Name
	u.Phone = user.Phone
	return nil
}

func (r *memUserRepository) UpdateLastLogin(_ context.Context, id uint, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.LastLogin = &at
	return nil
}

func (r *memUserRepository) SetChallenge(_ context.Context, id uint, code string, expiry time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.OTP = &code
	u.OTPExpiry = &expiry
	return nil
}

func (r *memUserRepository) ConsumeChallengeVerify(_ context.Context, id uint, code string, now time.Time) (bool, error) {
	u, ok := r.users[id]
	if !ok || u.OTP == nil || u.OTPExpiry == nil || *u.OTP != code || !u.OTPExpiry.After(now) {
		return false, nil
	}
	u.IsVerified = true
	u.OTP = nil
	u.OTPExpiry = nil
	return true, nil
}

func (r *memUserRepository) ConsumeChallengeSetPassword(_ context.Context, id uint, code string, now time.Time, passwordHash string) (bool, error) {
	u, ok := r.users[id]
	if !ok || u.OTP == nil || u.OTPExpiry == nil || *u.OTP != code || !u.OTPExpiry.After(now) {
		return false, nil
	}
	u.PasswordHash = passwordHash
	u.OTP = nil
	u.OTPExpiry = nil
	return true, nil
}

// captureMailer records the last code handed to it, standing in for the
// user's inbox.
type captureMailer struct {
	lastCode    string
	lastPurpose mailer.Purpose
}

func (m *captureMailer) SendOTP(_ context.Context, _, _, code string, purpose mailer.Purpose) error {
	m.lastCode = code
	m.lastPurpose = purpose
	return nil
}

func TestRegisterVerifyLoginSequence(t *testing.T) {
	repo := newMemUserRepository()
	inbox := &captureMailer{}
	jwtService := auth.NewJWTService("test-secret", time.Hour)
	svc := NewAuthService(
		repo,
		otp.NewGenerator(10*time.Minute),
		jwtService,
		openLimiter(),
		inbox,
		nil,
		nil,
		bcrypt.MinCost,
	)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Name:     "Alice",
		Email:    "Alice@X.com",
		Password: "Secret123!",
	})
	assert.NoError(t, err)
	assert.True(t, otp.WellFormed(inbox.lastCode))
	assert.Equal(t, mailer.PurposeVerify, inbox.lastPurpose)

	// Registering the same email again, in different case, is rejected.
	_, err = svc.Register(ctx, RegisterInput{Name: "Mallory", Email: "ALICE@x.COM", Password: "Secret123!"})
	assert.ErrorIs(t, err, errors.ErrDuplicateEmail)

	// Correct credentials do not help before verification.
	_, _, err = svc.Login(ctx, "alice@x.com", "Secret123!")
	assert.ErrorIs(t, err, errors.ErrNotVerified)

	assert.NoError(t, svc.VerifyAccount(ctx, "alice@x.com", inbox.lastCode))

	// The challenge was consumed; replaying the same code finds none.
	err = svc.VerifyAccount(ctx, "alice@x.com", inbox.lastCode)
	assert.ErrorIs(t, err, errors.ErrAlreadyVerified)

	token, loggedIn, err := svc.Login(ctx, "alice@x.com", "Secret123!")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := jwtService.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice@x.com", claims.Email)
}
