package services

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"stocktrail/internal/mailer"
	"stocktrail/internal/models"
	"stocktrail/internal/testutil"
)

var errSendFailed = errors.New("smtp unavailable")

func newTestUserService(db *gorm.DB) (*userService, *mailer.MemorySender) {
	sender := &mailer.MemorySender{}
	svc := NewUserService(db, mailer.NewNotifier(sender, time.Hour), time.Hour).(*userService)
	return svc, sender
}

// lastCode returns the one-time code at the end of the latest mail.
func lastCode(t *testing.T, sender *mailer.MemorySender) string {
	t.Helper()
	msg, ok := sender.Last()
	if !ok {
		t.Fatal("expected a mail to have been sent")
	}
	if len(msg.Text) < 6 {
		t.Fatalf("mail text too short for a code: %q", msg.Text)
	}
	return msg.Text[len(msg.Text)-6:]
}

func TestRegister(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)

		user, err := svc.Register("alice", "Alice@Example.com", "secret123")
		testutil.AssertNoError(t, err)

		if user.ID == "" {
			t.Fatal("expected user ID to be set")
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected normalized email, got %s", user.Email)
		}
		if user.IsVerified {
			t.Error("expected new user to be unverified")
		}
		if user.Password == "secret123" {
			t.Error("expected password to be hashed")
		}
		if user.OTPHash == "" || user.OTPPurpose != models.OTPPurposeVerify {
			t.Errorf("expected a verification code, got purpose %q", user.OTPPurpose)
		}

		code := lastCode(t, sender)
		if user.OTPHash != hashSecret(code) {
			t.Error("expected stored hash to match the mailed code")
		}

		var categories int64
		db.Model(&models.Category{}).Where("user_id = ?", user.ID).Count(&categories)
		if categories != int64(len(DefaultCategories)) {
			t.Errorf("expected %d default categories, got %d", len(DefaultCategories), categories)
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)

		_, err := svc.Register("alice", "alice@example.com", "secret123")
		testutil.AssertNoError(t, err)

		_, err = svc.Register("alice2", "alice@example.com", "secret123")
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("duplicate_username", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)

		_, err := svc.Register("alice", "alice@example.com", "secret123")
		testutil.AssertNoError(t, err)

		_, err = svc.Register("alice", "other@example.com", "secret123")
		testutil.AssertAppError(t, err, "DUPLICATE_USERNAME")
	})

	t.Run("missing_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)

		_, err := svc.Register("", "alice@example.com", "secret123")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("mail_failure_rolls_back", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)
		sender.Err = errSendFailed

		_, err := svc.Register("alice", "alice@example.com", "secret123")
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")

		var users, categories int64
		db.Model(&models.User{}).Count(&users)
		db.Model(&models.Category{}).Count(&categories)
		if users != 0 || categories != 0 {
			t.Errorf("expected nothing stored, got %d users and %d categories", users, categories)
		}
	})
}

func TestVerifyOTP(t *testing.T) {
	t.Run("valid_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)

		_, err := svc.Register("alice", "alice@example.com", "secret123")
		testutil.AssertNoError(t, err)
		code := lastCode(t, sender)

		user, err := svc.VerifyOTP("alice@example.com", code)
		testutil.AssertNoError(t, err)
		if !user.IsVerified {
			t.Error("expected user to be verified")
		}

		msg, _ := sender.Last()
		if msg.Subject == "" || msg.To != "alice@example.com" {
			t.Errorf("expected a welcome mail, got %+v", msg)
		}

		// The code is single use.
		_, err = svc.VerifyOTP("alice@example.com", code)
		testutil.AssertAppError(t, err, "INVALID_OTP")
	})

	t.Run("lowercase_code_accepted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)

		_, err := svc.Register("alice", "alice@example.com", "secret123")
		testutil.AssertNoError(t, err)
		code := lastCode(t, sender)

		lower := []byte(code)
		for i, c := range lower {
			if c >= 'A' && c <= 'F' {
				lower[i] = c + ('a' - 'A')
			}
		}
		_, err = svc.VerifyOTP("alice@example.com", string(lower))
		testutil.AssertNoError(t, err)
	})

	t.Run("wrong_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)

		_, err := svc.Register("alice", "alice@example.com", "secret123")
		testutil.AssertNoError(t, err)

		_, err = svc.VerifyOTP("alice@example.com", "ZZZZZZ")
		testutil.AssertAppError(t, err, "INVALID_OTP")
	})

	t.Run("expired_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)

		_, err := svc.Register("alice", "alice@example.com", "secret123")
		testutil.AssertNoError(t, err)
		code := lastCode(t, sender)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err = svc.VerifyOTP("alice@example.com", code)
		testutil.AssertAppError(t, err, "INVALID_OTP")
	})

	t.Run("unknown_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)

		_, err := svc.VerifyOTP("nobody@example.com", "ABCDEF")
		testutil.AssertAppError(t, err, "INVALID_OTP")
	})
}

func TestAttemptLogin(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)
		created := testutil.CreateTestUser(t, db)

		user, err := svc.AttemptLogin(created.Email, testutil.TestPassword)
		testutil.AssertNoError(t, err)
		if user.LastLoginAt == nil {
			t.Error("expected last login to be recorded")
		}
	})

	t.Run("wrong_password", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)
		created := testutil.CreateTestUser(t, db)

		_, err := svc.AttemptLogin(created.Email, "wrong")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	})

	t.Run("unknown_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)

		_, err := svc.AttemptLogin("nobody@example.com", testutil.TestPassword)
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	})

	t.Run("locks_after_repeated_failures", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)
		created := testutil.CreateTestUser(t, db)

		for i := 0; i < maxFailedLoginAttempts; i++ {
			_, err := svc.AttemptLogin(created.Email, "wrong")
			testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
		}

		_, err := svc.AttemptLogin(created.Email, testutil.TestPassword)
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")

		svc.now = func() time.Time { return time.Now().Add(lockoutDuration + time.Minute) }
		_, err = svc.AttemptLogin(created.Email, testutil.TestPassword)
		testutil.AssertNoError(t, err)
	})

	t.Run("unverified_gets_new_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)

		_, err := svc.Register("alice", "alice@example.com", "secret123")
		testutil.AssertNoError(t, err)

		_, err = svc.AttemptLogin("alice@example.com", "secret123")
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_VERIFIED")

		if n := len(sender.Messages()); n != 2 {
			t.Fatalf("expected 2 mails, got %d", n)
		}
		_, err = svc.VerifyOTP("alice@example.com", lastCode(t, sender))
		testutil.AssertNoError(t, err)
	})
}

func TestRefreshTokenHash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc, _ := newTestUserService(db)
	user := testutil.CreateTestUser(t, db)

	testutil.AssertNoError(t, svc.StoreRefreshTokenHash(user.ID, "abc123"))
	got, err := svc.GetRefreshTokenHash(user.ID)
	testutil.AssertNoError(t, err)
	if got != "abc123" {
		t.Errorf("expected abc123, got %s", got)
	}

	_, err = svc.GetRefreshTokenHash("missing")
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestPasswordReset(t *testing.T) {
	t.Run("forgot_then_reset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)
		user := testutil.CreateTestUser(t, db)
		testutil.AssertNoError(t, svc.StoreRefreshTokenHash(user.ID, "old-token"))

		testutil.AssertNoError(t, svc.ForgotPassword(user.Email))
		code := lastCode(t, sender)

		testutil.AssertNoError(t, svc.ResetPassword(user.Email, code, "newsecret"))

		_, err := svc.AttemptLogin(user.Email, "newsecret")
		testutil.AssertNoError(t, err)
		_, err = svc.AttemptLogin(user.Email, testutil.TestPassword)
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")

		hash, err := svc.GetRefreshTokenHash(user.ID)
		testutil.AssertNoError(t, err)
		if hash != "" {
			t.Error("expected refresh token to be revoked")
		}
	})

	t.Run("code_from_another_flow_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.AssertNoError(t, svc.RequestPasswordChangeOTP(user.ID))
		code := lastCode(t, sender)

		err := svc.ResetPassword(user.Email, code, "newsecret")
		testutil.AssertAppError(t, err, "INVALID_OTP")
	})

	t.Run("code_burned_after_repeated_misses", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.AssertNoError(t, svc.ForgotPassword(user.Email))
		code := lastCode(t, sender)

		for i := 0; i < maxOTPAttempts; i++ {
			err := svc.ResetPassword(user.Email, "ZZZZZZ", "newsecret")
			testutil.AssertAppError(t, err, "INVALID_OTP")
		}

		err := svc.ResetPassword(user.Email, code, "newsecret")
		testutil.AssertAppError(t, err, "INVALID_OTP")

		var stored models.User
		if err := db.First(&stored, "id = ?", user.ID).Error; err != nil {
			t.Fatalf("failed to reload user: %v", err)
		}
		if stored.OTPHash != "" || stored.OTPAttempts != 0 {
			t.Errorf("expected code cleared, got hash=%q attempts=%d", stored.OTPHash, stored.OTPAttempts)
		}

		// A fresh code starts a new allowance.
		testutil.AssertNoError(t, svc.ForgotPassword(user.Email))
		code = lastCode(t, sender)
		err = svc.ResetPassword(user.Email, "ZZZZZZ", "newsecret")
		testutil.AssertAppError(t, err, "INVALID_OTP")
		testutil.AssertNoError(t, svc.ResetPassword(user.Email, code, "newsecret"))
	})

	t.Run("misses_below_limit_keep_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.AssertNoError(t, svc.ForgotPassword(user.Email))
		code := lastCode(t, sender)

		for i := 0; i < maxOTPAttempts-1; i++ {
			err := svc.ResetPassword(user.Email, "ZZZZZZ", "newsecret")
			testutil.AssertAppError(t, err, "INVALID_OTP")
		}
		testutil.AssertNoError(t, svc.ResetPassword(user.Email, code, "newsecret"))
	})

	t.Run("unknown_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)

		err := svc.ForgotPassword("nobody@example.com")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("with_current_password", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)
		user := testutil.CreateTestUser(t, db)

		err := svc.ChangePassword(user.ID, "wrong", "newsecret")
		testutil.AssertAppError(t, err, "INCORRECT_PASSWORD")

		testutil.AssertNoError(t, svc.ChangePassword(user.ID, testutil.TestPassword, "newsecret"))
		_, err = svc.AttemptLogin(user.Email, "newsecret")
		testutil.AssertNoError(t, err)

		if _, ok := sender.Last(); !ok {
			t.Error("expected a password changed mail")
		}
	})

	t.Run("with_otp", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.AssertNoError(t, svc.RequestPasswordChangeOTP(user.ID))
		code := lastCode(t, sender)

		err := svc.ChangePasswordWithOTP(user.ID, code, "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		testutil.AssertNoError(t, svc.ChangePasswordWithOTP(user.ID, code, "newsecret"))
		_, err = svc.AttemptLogin(user.Email, "newsecret")
		testutil.AssertNoError(t, err)

		err = svc.ChangePasswordWithOTP(user.ID, code, "another")
		testutil.AssertAppError(t, err, "INVALID_OTP")
	})
}

func TestAccountDeletion(t *testing.T) {
	t.Run("removes_owned_data", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, sender := newTestUserService(db)
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)

		testutil.CreateTestCategory(t, db, user.ID)
		product := testutil.CreateTestProduct(t, db, user.ID, 3, 2, 1)
		testutil.CreateTestRecord(t, db, product, models.RecordKindNewItem, 3, nil, testutil.Price(1), time.Now())
		testutil.CreateTestGoal(t, db, user.ID, 1000, 200, 1, time.Now())
		otherProduct := testutil.CreateTestProduct(t, db, other.ID, 3, 2, 1)

		err := svc.RequestAccountDeletion(user.ID, "wrong")
		testutil.AssertAppError(t, err, "INCORRECT_PASSWORD")

		testutil.AssertNoError(t, svc.RequestAccountDeletion(user.ID, testutil.TestPassword))
		code := lastCode(t, sender)

		testutil.AssertNoError(t, svc.ConfirmAccountDeletion(user.ID, code))

		for _, model := range []interface{}{&models.Product{}, &models.Category{}, &models.TransactionRecord{}, &models.Goal{}} {
			var n int64
			db.Unscoped().Model(model).Where("user_id = ?", user.ID).Count(&n)
			if n != 0 {
				t.Errorf("expected no %T rows left, got %d", model, n)
			}
		}
		_, err = svc.GetUserByID(user.ID)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")

		var kept int64
		db.Model(&models.Product{}).Where("id = ?", otherProduct.ID).Count(&kept)
		if kept != 1 {
			t.Error("expected other user's product to remain")
		}
	})

	t.Run("wrong_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestUserService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.AssertNoError(t, svc.RequestAccountDeletion(user.ID, testutil.TestPassword))
		err := svc.ConfirmAccountDeletion(user.ID, "000000")
		if err == nil {
			t.Fatal("expected an error for a wrong code")
		}

		_, err = svc.GetUserByID(user.ID)
		testutil.AssertNoError(t, err)
	})
}

func TestGetUserByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc, _ := newTestUserService(db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestGoal(t, db, user.ID, 1000, 200, 3, time.Now())

	got, err := svc.GetUserByID(user.ID)
	testutil.AssertNoError(t, err)
	if got.Goal == nil || got.Goal.DurationMonths != 3 {
		t.Errorf("expected goal to be preloaded, got %+v", got.Goal)
	}
}
