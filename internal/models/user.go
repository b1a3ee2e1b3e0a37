package models

import "time"

// OTPPurpose scopes a one-time code to the flow that issued it.
type OTPPurpose string

const (
	OTPPurposeVerify         OTPPurpose = "verify"
	OTPPurposeResetPassword  OTPPurpose = "reset_password"
	OTPPurposeChangePassword OTPPurpose = "change_password"
	OTPPurposeDeleteAccount  OTPPurpose = "delete_account"
)

// User represents an account owner. Every product, category, history record
// and goal belongs to exactly one user.
type User struct {
	Base
	Username            string     `gorm:"uniqueIndex;not null" json:"username"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	IsVerified          bool       `gorm:"default:false" json:"is_verified"`
	OTPHash             string     `gorm:"size:64" json:"-"`
	OTPPurpose          OTPPurpose `gorm:"size:32" json:"-"`
	OTPExpiresAt        *time.Time `json:"-"`
	OTPAttempts         int        `gorm:"default:0" json:"-"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	Goal                *Goal      `gorm:"foreignKey:UserID" json:"goal,omitempty"`
}
