package model

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleMessOwner Role = "mess-owner"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleMessOwner, RoleAdmin:
		return true
	}
	return false
}

// DashboardPath maps a role to its dashboard route. Unknown roles fall back
// to the regular user dashboard.
func (r Role) DashboardPath() string {
	switch r {
	case RoleMessOwner:
		return "/mess-owner/dashboard"
	case RoleAdmin:
		return "/admin/dashboard"
	default:
		return "/user/dashboard"
	}
}

// User represents an account in the system. Email is stored lowercase and is
// unique. OTP and OTPExpiry form one challenge: both set or both nil. The
// stored challenge is purpose-blind; the endpoint that validates it decides
// whether it verifies an account or authorizes a password reset.
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"size:50;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;size:255;not null"` // Never expose in JSON
	Role         Role       `json:"role" gorm:"size:50;default:'user';index"`
	Phone        string     `json:"phone,omitempty" gorm:"size:20"`
	IsVerified   bool       `json:"isVerified" gorm:"default:false;index"`
	IsActive     bool       `json:"isActive" gorm:"default:true"`
	OTP          *string    `json:"-" gorm:"column:otp;size:6"`
	OTPExpiry    *time.Time `json:"-" gorm:"column:otp_expiry"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
