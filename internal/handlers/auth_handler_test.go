package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/middleware"
	"stocktrail/internal/models"
	"stocktrail/internal/validator"
)

const testUserID = "0190a5a0-0000-7000-8000-000000000001"

// --- mock services ---

type mockUserService struct {
	registerFn               func(username, email, password string) (*models.User, error)
	verifyOTPFn              func(email, otp string) (*models.User, error)
	resendVerificationFn     func(email string) error
	getUserByEmailFn         func(email string) (*models.User, error)
	getUserByIDFn            func(id string) (*models.User, error)
	attemptLoginFn           func(email, password string) (*models.User, error)
	storeRefreshTokenHashFn  func(userID, tokenHash string) error
	getRefreshTokenHashFn    func(userID string) (string, error)
	forgotPasswordFn         func(email string) error
	resetPasswordFn          func(email, otp, newPassword string) error
	changePasswordFn         func(userID, currentPassword, newPassword string) error
	requestPasswordChangeFn  func(userID string) error
	changePasswordWithOTPFn  func(userID, otp, newPassword string) error
	requestAccountDeletionFn func(userID, password string) error
	confirmAccountDeletionFn func(userID, otp string) error
}

func (m *mockUserService) Register(username, email, password string) (*models.User, error) {
	if m.registerFn != nil {
		return m.registerFn(username, email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) VerifyOTP(email, otp string) (*models.User, error) {
	if m.verifyOTPFn != nil {
		return m.verifyOTPFn(email, otp)
	}
	return &models.User{}, nil
}

func (m *mockUserService) ResendVerification(email string) error {
	if m.resendVerificationFn != nil {
		return m.resendVerificationFn(email)
	}
	return nil
}

func (m *mockUserService) GetUserByEmail(email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{Base: models.Base{ID: id}}, nil
}

func (m *mockUserService) VerifyPassword(_ *models.User, _ string) bool {
	return true
}

func (m *mockUserService) AttemptLogin(email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) StoreRefreshTokenHash(userID, tokenHash string) error {
	if m.storeRefreshTokenHashFn != nil {
		return m.storeRefreshTokenHashFn(userID, tokenHash)
	}
	return nil
}

func (m *mockUserService) GetRefreshTokenHash(userID string) (string, error) {
	if m.getRefreshTokenHashFn != nil {
		return m.getRefreshTokenHashFn(userID)
	}
	return "", nil
}

func (m *mockUserService) ForgotPassword(email string) error {
	if m.forgotPasswordFn != nil {
		return m.forgotPasswordFn(email)
	}
	return nil
}

func (m *mockUserService) ResetPassword(email, otp, newPassword string) error {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(email, otp, newPassword)
	}
	return nil
}

func (m *mockUserService) ChangePassword(userID, currentPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(userID, currentPassword, newPassword)
	}
	return nil
}

func (m *mockUserService) RequestPasswordChangeOTP(userID string) error {
	if m.requestPasswordChangeFn != nil {
		return m.requestPasswordChangeFn(userID)
	}
	return nil
}

func (m *mockUserService) ChangePasswordWithOTP(userID, otp, newPassword string) error {
	if m.changePasswordWithOTPFn != nil {
		return m.changePasswordWithOTPFn(userID, otp, newPassword)
	}
	return nil
}

func (m *mockUserService) RequestAccountDeletion(userID, password string) error {
	if m.requestAccountDeletionFn != nil {
		return m.requestAccountDeletionFn(userID, password)
	}
	return nil
}

func (m *mockUserService) ConfirmAccountDeletion(userID, otp string) error {
	if m.confirmAccountDeletionFn != nil {
		return m.confirmAccountDeletionFn(userID, otp)
	}
	return nil
}

type auditEntry struct {
	userID, action, resourceType, resourceID string
}

type mockAuditService struct {
	entries []auditEntry
}

func (m *mockAuditService) Log(userID, action, resourceType, resourceID, _ string, _ map[string]interface{}) {
	m.entries = append(m.entries, auditEntry{userID, action, resourceType, resourceID})
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func newTestTokens() *middleware.TokenIssuer {
	return middleware.NewTokenIssuer("test-secret", time.Minute)
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/register", handler.Register)
	r.POST("/auth/verify", handler.VerifyOTP)
	r.POST("/auth/resend-otp", handler.ResendOTP)
	r.POST("/auth/login", handler.Login)
	r.POST("/auth/refresh", handler.Refresh)
	r.POST("/auth/forgot-password", handler.ForgotPassword)
	r.POST("/auth/reset-password", handler.ResetPassword)
	r.POST("/auth/logout", injectUserID(testUserID), handler.Logout)
	r.GET("/profile", injectUserID(testUserID), handler.GetProfile)
	r.PUT("/profile/password", injectUserID(testUserID), handler.ChangePassword)
	r.POST("/profile/password/otp", injectUserID(testUserID), handler.RequestPasswordChangeOTP)
	r.POST("/profile/password/otp/confirm", injectUserID(testUserID), handler.ChangePasswordWithOTP)
	r.POST("/profile/delete", injectUserID(testUserID), handler.RequestAccountDeletion)
	r.POST("/profile/delete/confirm", injectUserID(testUserID), handler.ConfirmAccountDeletion)
	return r
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

// --- tests ---

func TestAuthHandler_Register(t *testing.T) {
	t.Run("returns 201 without tokens", func(t *testing.T) {
		userSvc := &mockUserService{
			registerFn: func(username, email, _ string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Username: username, Email: email}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupAuthRouter(NewAuthHandler(userSvc, audit, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/register",
			`{"username":"shopkeeper","email":"test@example.com","password":"password123"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["email"] != "test@example.com" {
			t.Errorf("expected email test@example.com, got %v", result["email"])
		}
		if result["is_verified"] != false {
			t.Errorf("expected unverified user, got %v", result["is_verified"])
		}
		if _, ok := result["access_token"]; ok {
			t.Error("registration must not issue tokens")
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "REGISTER" {
			t.Errorf("expected one REGISTER audit entry, got %+v", audit.entries)
		}
	})

	t.Run("returns 400 on missing username", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/register", `{"email":"test@example.com","password":"password123"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on short password", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/register", `{"username":"abc","email":"test@example.com","password":"short"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on duplicate email", func(t *testing.T) {
		userSvc := &mockUserService{
			registerFn: func(_, _, _ string) (*models.User, error) {
				return nil, apperrors.ErrDuplicateEmail
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/register",
			`{"username":"abc","email":"dup@example.com","password":"password123"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_EMAIL")
	})
}

func TestAuthHandler_VerifyOTP(t *testing.T) {
	t.Run("issues tokens and stores refresh hash", func(t *testing.T) {
		var storedHash string
		userSvc := &mockUserService{
			verifyOTPFn: func(email, otp string) (*models.User, error) {
				if otp != "A1B2C3" {
					t.Errorf("expected otp A1B2C3, got %s", otp)
				}
				return &models.User{Base: models.Base{ID: testUserID}, Email: email, IsVerified: true}, nil
			},
			storeRefreshTokenHashFn: func(_ string, hash string) error {
				storedHash = hash
				return nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/verify", `{"email":"test@example.com","otp":"A1B2C3"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["access_token"] == nil || result["access_token"] == "" {
			t.Error("expected non-empty access_token")
		}
		refresh, _ := result["refresh_token"].(string)
		if refresh == "" {
			t.Fatal("expected non-empty refresh_token")
		}
		if storedHash != middleware.HashToken(refresh) {
			t.Error("stored hash does not match issued refresh token")
		}
		if result["expires_in"] != float64(60) {
			t.Errorf("expected expires_in 60, got %v", result["expires_in"])
		}
	})

	t.Run("returns 400 on malformed code", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/verify", `{"email":"test@example.com","otp":"12"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on wrong code", func(t *testing.T) {
		userSvc := &mockUserService{
			verifyOTPFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrInvalidOTP
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/verify", `{"email":"test@example.com","otp":"ffffff"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_OTP")
	})

	t.Run("returns 500 when token storage fails", func(t *testing.T) {
		userSvc := &mockUserService{
			verifyOTPFn: func(email, _ string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
			},
			storeRefreshTokenHashFn: func(_, _ string) error {
				return fmt.Errorf("db connection lost")
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/verify", `{"email":"test@example.com","otp":"A1B2C3"}`)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		userSvc := &mockUserService{
			attemptLoginFn: func(email, _ string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Email: email, IsVerified: true}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupAuthRouter(NewAuthHandler(userSvc, audit, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/login", `{"email":"test@example.com","password":"password123"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["access_token"] == nil || result["access_token"] == "" {
			t.Error("expected non-empty access_token")
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "LOGIN" {
			t.Errorf("expected one LOGIN audit entry, got %+v", audit.entries)
		}
	})

	errorCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid credentials", apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"locked account", apperrors.ErrAccountLocked, http.StatusLocked, "ACCOUNT_LOCKED"},
		{"unverified account", apperrors.ErrAccountNotVerified, http.StatusUnauthorized, "ACCOUNT_NOT_VERIFIED"},
	}
	for _, tc := range errorCases {
		t.Run("returns "+tc.code+" on "+tc.name, func(t *testing.T) {
			userSvc := &mockUserService{
				attemptLoginFn: func(_, _ string) (*models.User, error) {
					return nil, tc.err
				},
			}
			r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

			rec := doRequest(r, "POST", "/auth/login", `{"email":"test@example.com","password":"password123"}`)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), tc.code)
		})
	}

	t.Run("returns 400 on missing fields", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/login", `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	tokens := newTestTokens()
	user := &models.User{Base: models.Base{ID: testUserID}, Email: "test@example.com"}
	refresh, err := tokens.GenerateRefreshToken(user)
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}
	access, err := tokens.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}

	t.Run("rotates a valid refresh token", func(t *testing.T) {
		stored := middleware.HashToken(refresh)
		userSvc := &mockUserService{
			getRefreshTokenHashFn: func(string) (string, error) { return stored, nil },
			getUserByIDFn:         func(string) (*models.User, error) { return user, nil },
			storeRefreshTokenHashFn: func(_, hash string) error {
				stored = hash
				return nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, tokens))

		rec := doRequest(r, "POST", "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refresh))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if stored != middleware.HashToken(result["refresh_token"].(string)) {
			t.Error("new refresh token hash was not stored")
		}
	})

	t.Run("returns 401 on revoked token", func(t *testing.T) {
		userSvc := &mockUserService{
			getRefreshTokenHashFn: func(string) (string, error) { return "", nil },
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, tokens))

		rec := doRequest(r, "POST", "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refresh))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNAUTHORIZED")
	})

	t.Run("returns 401 on access token", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}, tokens))

		rec := doRequest(r, "POST", "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, access))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("returns 401 on token signed with another key", func(t *testing.T) {
		foreign, _ := middleware.NewTokenIssuer("other-secret", time.Minute).GenerateRefreshToken(user)
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}, tokens))

		rec := doRequest(r, "POST", "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, foreign))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	t.Run("forgot password hides unknown addresses", func(t *testing.T) {
		userSvc := &mockUserService{
			forgotPasswordFn: func(string) error { return apperrors.ErrUserNotFound },
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/forgot-password", `{"email":"nobody@example.com"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("reset password passes code through", func(t *testing.T) {
		var gotOTP, gotPassword string
		userSvc := &mockUserService{
			resetPasswordFn: func(_, otp, newPassword string) error {
				gotOTP, gotPassword = otp, newPassword
				return nil
			},
			getUserByEmailFn: func(email string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupAuthRouter(NewAuthHandler(userSvc, audit, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/reset-password",
			`{"email":"test@example.com","otp":"abc123","new_password":"newpassword1"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotOTP != "abc123" || gotPassword != "newpassword1" {
			t.Errorf("unexpected arguments %q %q", gotOTP, gotPassword)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "PASSWORD_RESET" {
			t.Errorf("expected PASSWORD_RESET audit entry, got %+v", audit.entries)
		}
	})

	t.Run("reset password returns 400 on invalid code", func(t *testing.T) {
		userSvc := &mockUserService{
			resetPasswordFn: func(_, _, _ string) error { return apperrors.ErrInvalidOTP },
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/reset-password",
			`{"email":"test@example.com","otp":"abc123","new_password":"newpassword1"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_OTP")
	})
}

func TestAuthHandler_Profile(t *testing.T) {
	t.Run("returns profile with goal", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(id string) (*models.User, error) {
				return &models.User{
					Base:       models.Base{ID: id},
					Username:   "shopkeeper",
					Email:      "test@example.com",
					IsVerified: true,
					Goal:       &models.Goal{TargetAmount: 3000, DurationMonths: 1},
				}, nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["id"] != testUserID {
			t.Errorf("expected id %s, got %v", testUserID, result["id"])
		}
		goal, ok := result["goal"].(map[string]interface{})
		if !ok || goal["target_amount"] != float64(3000) {
			t.Errorf("expected goal with target 3000, got %v", result["goal"])
		}
	})

	t.Run("returns 401 without user", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuditService{}, newTestTokens())
		r := gin.New()
		r.GET("/profile", handler.GetProfile)

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("change password maps incorrect password", func(t *testing.T) {
		userSvc := &mockUserService{
			changePasswordFn: func(_, _, _ string) error { return apperrors.ErrIncorrectPassword },
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "PUT", "/profile/password",
			`{"current_password":"wrong","new_password":"newpassword1"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INCORRECT_PASSWORD")
	})

	t.Run("change password with otp", func(t *testing.T) {
		requested := false
		var changedFor string
		userSvc := &mockUserService{
			requestPasswordChangeFn: func(userID string) error {
				requested = userID == testUserID
				return nil
			},
			changePasswordWithOTPFn: func(userID, _, _ string) error {
				changedFor = userID
				return nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/profile/password/otp", "")
		if rec.Code != http.StatusOK || !requested {
			t.Fatalf("expected code request for user, got %d", rec.Code)
		}

		rec = doRequest(r, "POST", "/profile/password/otp/confirm", `{"otp":"A1B2C3","new_password":"newpassword1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if changedFor != testUserID {
			t.Errorf("expected change for %s, got %s", testUserID, changedFor)
		}
	})

	t.Run("account deletion flow", func(t *testing.T) {
		var deleted string
		userSvc := &mockUserService{
			requestAccountDeletionFn: func(_, password string) error {
				if password != "password123" {
					return apperrors.ErrIncorrectPassword
				}
				return nil
			},
			confirmAccountDeletionFn: func(userID, _ string) error {
				deleted = userID
				return nil
			},
		}
		audit := &mockAuditService{}
		r := setupAuthRouter(NewAuthHandler(userSvc, audit, newTestTokens()))

		rec := doRequest(r, "POST", "/profile/delete", `{"password":"nope"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 on wrong password, got %d", rec.Code)
		}

		rec = doRequest(r, "POST", "/profile/delete", `{"password":"password123"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = doRequest(r, "POST", "/profile/delete/confirm", `{"otp":"A1B2C3"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if deleted != testUserID {
			t.Errorf("expected deletion of %s, got %q", testUserID, deleted)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "DELETE_ACCOUNT" {
			t.Errorf("expected DELETE_ACCOUNT audit entry, got %+v", audit.entries)
		}
	})

	t.Run("logout clears refresh hash", func(t *testing.T) {
		stored := "something"
		userSvc := &mockUserService{
			storeRefreshTokenHashFn: func(_, hash string) error {
				stored = hash
				return nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, newTestTokens()))

		rec := doRequest(r, "POST", "/auth/logout", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stored != "" {
			t.Errorf("expected cleared hash, got %q", stored)
		}
	})
}
