package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/logger"
	"stocktrail/internal/mailer"
	"stocktrail/internal/models"
)

const (
	maxFailedLoginAttempts = 5
	lockoutDuration        = 15 * time.Minute
	otpBytes               = 3
	maxOTPAttempts         = 5
)

// userService handles accounts, one-time codes and credentials.
type userService struct {
	db     *gorm.DB
	mail   *mailer.Notifier
	otpTTL time.Duration
	now    func() time.Time
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB, mail *mailer.Notifier, otpTTL time.Duration) UserServicer {
	return &userService{db: db, mail: mail, otpTTL: otpTTL, now: time.Now}
}

// Register creates an unverified user with the default categories and
// e-mails a verification code. Nothing is stored if the mail cannot be sent.
func (s *userService) Register(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "username, email and password are required")
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateUsername
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	code, err := generateOTP()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	expires := s.now().Add(s.otpTTL)

	user := &models.User{
		Username:     username,
		Email:        email,
		Password:     string(hashedPassword),
		OTPHash:      hashSecret(code),
		OTPPurpose:   models.OTPPurposeVerify,
		OTPExpiresAt: &expires,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := seedDefaultCategories(tx, user.ID); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.mail.VerificationCode(user.Email, code); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// VerifyOTP marks the user verified if code is their current verification code.
func (s *userService) VerifyOTP(email, code string) (*models.User, error) {
	user, err := s.findByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidOTP
		}
		return nil, err
	}

	if err := s.checkOTP(user, models.OTPPurposeVerify, code); err != nil {
		return nil, err
	}

	updates := clearedOTP()
	updates["is_verified"] = true
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.IsVerified = true

	s.notify("welcome", s.mail.Welcome(user.Email, user.Username))
	return user, nil
}

// ResendVerification issues a fresh verification code to an unverified user.
func (s *userService) ResendVerification(email string) error {
	user, err := s.findByEmail(email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "account is already verified")
	}
	code, err := s.issueOTP(user, models.OTPPurposeVerify)
	if err != nil {
		return err
	}
	if err := s.mail.VerificationCode(user.Email, code); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetUserByEmail retrieves a verified user by email
func (s *userService) GetUserByEmail(email string) (*models.User, error) {
	user, err := s.findByEmail(email)
	if err != nil {
		return nil, err
	}
	if !user.IsVerified {
		return nil, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (s *userService) findByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user and their goal by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Goal").Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// VerifyPassword checks if the provided password matches the stored hash
func (s *userService) VerifyPassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	return err == nil
}

// AttemptLogin checks credentials and applies the lockout policy. An
// unverified user with the right password gets a new verification code and
// ErrAccountNotVerified.
func (s *userService) AttemptLogin(email, password string) (*models.User, error) {
	user, err := s.findByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, apperrors.ErrAccountLocked
	}

	if !s.VerifyPassword(user, password) {
		attempts := user.FailedLoginAttempts + 1
		updates := map[string]interface{}{"failed_login_attempts": attempts}
		if attempts >= maxFailedLoginAttempts {
			lockedUntil := now.Add(lockoutDuration)
			updates["locked_until"] = lockedUntil
			updates["failed_login_attempts"] = 0
		}
		if err := s.db.Model(user).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsVerified {
		code, err := s.issueOTP(user, models.OTPPurposeVerify)
		if err != nil {
			return nil, err
		}
		if err := s.mail.VerificationCode(user.Email, code); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil, apperrors.ErrAccountNotVerified
	}

	if err := s.db.Model(user).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.LastLoginAt = &now

	return user, nil
}

// StoreRefreshTokenHash saves the hash of the user's current refresh token.
func (s *userService) StoreRefreshTokenHash(userID, tokenHash string) error {
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("refresh_token_hash", tokenHash).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetRefreshTokenHash returns the stored refresh token hash.
func (s *userService) GetRefreshTokenHash(userID string) (string, error) {
	var user models.User
	if err := s.db.Select("id", "refresh_token_hash").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrUserNotFound
		}
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user.RefreshTokenHash, nil
}

// ForgotPassword e-mails a password reset code.
func (s *userService) ForgotPassword(email string) error {
	user, err := s.findByEmail(email)
	if err != nil {
		return err
	}
	code, err := s.issueOTP(user, models.OTPPurposeResetPassword)
	if err != nil {
		return err
	}
	if err := s.mail.PasswordResetCode(user.Email, code); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ResetPassword sets a new password using a reset code. It also clears any
// lockout and revokes the stored refresh token.
func (s *userService) ResetPassword(email, code, newPassword string) error {
	user, err := s.findByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return apperrors.ErrInvalidOTP
		}
		return err
	}
	if err := s.checkOTP(user, models.OTPPurposeResetPassword, code); err != nil {
		return err
	}

	updates, err := passwordUpdates(newPassword)
	if err != nil {
		return err
	}
	updates["failed_login_attempts"] = 0
	updates["locked_until"] = nil
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notify("password reset", s.mail.PasswordResetDone(user.Email))
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *userService) ChangePassword(userID, currentPassword, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if !s.VerifyPassword(user, currentPassword) {
		return apperrors.ErrIncorrectPassword
	}

	updates, err := passwordUpdates(newPassword)
	if err != nil {
		return err
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notify("password changed", s.mail.PasswordChanged(user.Email))
	return nil
}

// RequestPasswordChangeOTP e-mails a code for ChangePasswordWithOTP.
func (s *userService) RequestPasswordChangeOTP(userID string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	code, err := s.issueOTP(user, models.OTPPurposeChangePassword)
	if err != nil {
		return err
	}
	if err := s.mail.PasswordChangeCode(user.Email, code); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ChangePasswordWithOTP replaces the password using an e-mailed code.
func (s *userService) ChangePasswordWithOTP(userID, code, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if err := s.checkOTP(user, models.OTPPurposeChangePassword, code); err != nil {
		return err
	}

	updates, err := passwordUpdates(newPassword)
	if err != nil {
		return err
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notify("password changed", s.mail.PasswordChanged(user.Email))
	return nil
}

// RequestAccountDeletion checks the password and e-mails a deletion code.
func (s *userService) RequestAccountDeletion(userID, password string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if !s.VerifyPassword(user, password) {
		return apperrors.ErrIncorrectPassword
	}
	code, err := s.issueOTP(user, models.OTPPurposeDeleteAccount)
	if err != nil {
		return err
	}
	if err := s.mail.AccountDeletionCode(user.Email, code); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ConfirmAccountDeletion removes the user and everything they own in one
// transaction. Audit log entries are kept.
func (s *userService) ConfirmAccountDeletion(userID, code string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if err := s.checkOTP(user, models.OTPPurposeDeleteAccount, code); err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		owned := []interface{}{
			&models.TransactionRecord{},
			&models.Product{},
			&models.Category{},
			&models.Goal{},
		}
		for _, model := range owned {
			if err := tx.Unscoped().Where("user_id = ?", userID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&models.User{}, "id = ?", userID).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notify("account deleted", s.mail.AccountDeleted(user.Email, user.Username))
	return nil
}

// issueOTP stores a fresh code for purpose and returns it in clear.
func (s *userService) issueOTP(user *models.User, purpose models.OTPPurpose) (string, error) {
	code, err := generateOTP()
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	expires := s.now().Add(s.otpTTL)
	if err := s.db.Model(user).Updates(map[string]interface{}{
		"otp_hash":       hashSecret(code),
		"otp_purpose":    purpose,
		"otp_expires_at": expires,
		"otp_attempts":   0,
	}).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return code, nil
}

// checkOTP verifies code against the user's stored code for purpose. After
// maxOTPAttempts wrong guesses the code is discarded and a new one must be
// requested.
func (s *userService) checkOTP(user *models.User, purpose models.OTPPurpose, code string) error {
	if user.OTPHash == "" || user.OTPPurpose != purpose || user.OTPExpiresAt == nil {
		return apperrors.ErrInvalidOTP
	}
	if s.now().After(*user.OTPExpiresAt) || user.OTPAttempts >= maxOTPAttempts {
		return apperrors.ErrInvalidOTP
	}
	given := hashSecret(strings.ToUpper(strings.TrimSpace(code)))
	if subtle.ConstantTimeCompare([]byte(given), []byte(user.OTPHash)) != 1 {
		if err := s.recordOTPMiss(user.ID); err != nil {
			return err
		}
		return apperrors.ErrInvalidOTP
	}
	return nil
}

// recordOTPMiss counts a wrong code and burns the code once the limit is hit.
// The increment runs in SQL so concurrent guesses are all counted.
func (s *userService) recordOTPMiss(userID string) error {
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("otp_attempts", gorm.Expr("otp_attempts + 1")).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(&models.User{}).
		Where("id = ? AND otp_attempts >= ?", userID, maxOTPAttempts).
		Updates(clearedOTP()).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *userService) notify(what string, err error) {
	if err != nil {
		logger.Get().Errorw("failed to send notification", "mail", what, "error", err)
	}
}

// clearedOTP returns the column updates that consume the current code.
func clearedOTP() map[string]interface{} {
	return map[string]interface{}{
		"otp_hash":       "",
		"otp_purpose":    "",
		"otp_expires_at": nil,
		"otp_attempts":   0,
	}
}

// passwordUpdates hashes newPassword and consumes the current code. The
// stored refresh token is revoked so other sessions must log in again.
func passwordUpdates(newPassword string) (map[string]interface{}, error) {
	if newPassword == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "new password is required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	updates := clearedOTP()
	updates["password"] = string(hashed)
	updates["refresh_token_hash"] = ""
	return updates, nil
}

// generateOTP returns six uppercase hex characters.
func generateOTP() (string, error) {
	b := make([]byte, otpBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// hashSecret returns the SHA-256 hex digest of a one-time code.
func hashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}
