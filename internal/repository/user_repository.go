package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"messmate/internal/model"
)

// safeColumns is the default-deny projection: secret fields (password hash,
// otp, otp expiry) are only loaded through the WithSecrets accessors.
var safeColumns = []string{
	"id", "name", "email", "role", "phone",
	"is_verified", "is_active", "last_login", "created_at", "updated_at",
}

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByEmailWithSecrets(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error

	SetChallenge(ctx context.Context, id uint, code string, expiry time.Time) error
	ConsumeChallengeVerify(ctx context.Context, id uint, code string, now time.Time) (bool, error)
	ConsumeChallengeSetPassword(ctx context.Context, id uint, code string, now time.Time, passwordHash string) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Select(safeColumns).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Select(safeColumns).
		Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmailWithSecrets(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"name":  user.Name,
			"phone": user.Phone,
		}).Error
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
}

// SetChallenge overwrites the stored code and expiry, invalidating any prior
// unconsumed challenge for the user.
func (r *userRepository) SetChallenge(ctx context.Context, id uint, code string, expiry time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"otp":        code,
			"otp_expiry": expiry,
		}).Error
}

// ConsumeChallengeVerify marks the user verified and clears the challenge in
// a single conditional UPDATE. It reports false when the stored code no
// longer matches or has expired, so a concurrent resend cannot have its fresh
// code consumed against a stale submission.
func (r *userRepository) ConsumeChallengeVerify(ctx context.Context, id uint, code string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND otp = ? AND otp_expiry > ?", id, code, now).
		Updates(map[string]interface{}{
			"is_verified": true,
			"otp":         nil,
			"otp_expiry":  nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ConsumeChallengeSetPassword stores the new password hash and clears the
// challenge, guarded by the same compare-and-clear condition.
func (r *userRepository) ConsumeChallengeSetPassword(ctx context.Context, id uint, code string, now time.Time, passwordHash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND otp = ? AND otp_expiry > ?", id, code, now).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"otp":           nil,
			"otp_expiry":    nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
