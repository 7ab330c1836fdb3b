package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmora/storefront/internal/hash"
	"github.com/velmora/storefront/internal/logging"
	"github.com/velmora/storefront/internal/mail"
	"github.com/velmora/storefront/internal/models"
	"github.com/velmora/storefront/internal/mykafka"
	"github.com/velmora/storefront/internal/service"
)

const otpTTL = 10 * time.Minute

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      *mykafka.Producer
	Mailer        mail.Sender
	AppURL        string
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") || len(req.Password) < 8 {
		l.Warn("register_failed", "status", 400, "reason", "validation")
		return respondError(c, http.StatusBadRequest, "email and a password of at least 8 characters are required")
	}

	var existing models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		l.Warn("register_failed", "status", 409, "reason", "user_exists")
		return respondError(c, http.StatusConflict, "user already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         "user",
	}
	if err := h.DB.Create(&user).Error; err != nil {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	h.sendVerificationMail(c, &user)

	publish(c, h.Producer, "user_events", map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("register_success", "status", 201, "userID", user.ID)
	return respondMessage(c, http.StatusCreated, user, "please verify your email")
}

func (h *AuthHandler) sendVerificationMail(c echo.Context, user *models.User) {
	if h.Mailer == nil {
		return
	}
	claims := jwt.MapClaims{
		"sub":     user.ID,
		"purpose": "verify_email",
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.JWTSecret)
	if err != nil {
		c.Logger().Errorf("verification token error: %v", err)
		return
	}
	link := fmt.Sprintf("%s/auth/verify-email/%s", h.AppURL, token)
	if err := h.Mailer.Send(user.Email, "Verify your email", mail.VerificationBody(link)); err != nil {
		c.Logger().Errorf("verification mail error: %v", err)
	}
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_verify_email")

	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return respondError(c, http.StatusBadRequest, "missing token")
	}

	token, err := jwt.Parse(req.Token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		l.Warn("verify_email_failed", "status", 400, "reason", "invalid_token")
		return respondError(c, http.StatusBadRequest, "invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != "verify_email" {
		return respondError(c, http.StatusBadRequest, "invalid token")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return respondError(c, http.StatusBadRequest, "invalid token subject")
	}

	var user models.User
	if err := h.DB.First(&user, uint(sub)).Error; err != nil {
		return respondError(c, http.StatusNotFound, "user not found")
	}

	if err := h.DB.Model(&user).Update("email_verified", true).Error; err != nil {
		l.Error("verify_email_failed", "status", 500, "error", err)
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	l.Info("verify_email_success", "userID", user.ID)
	return respondMessage(c, http.StatusOK, nil, "email verification successful")
}

// Login checks the password and mails a login OTP. Cookies are only issued by
// VerifyOTP.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
		return respondError(c, http.StatusUnauthorized, "invalid email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
		return respondError(c, http.StatusUnauthorized, "invalid email or password")
	}

	if err := h.issueOTP(user.Email, models.OTPPurposeLogin); err != nil {
		l.Error("login_failed", "status", 500, "reason", "otp", "error", err)
		return respondError(c, http.StatusInternalServerError, "failed to send OTP")
	}

	l.Info("login_otp_sent", "userID", user.ID)
	return respondMessage(c, http.StatusOK, nil, "OTP sent, please verify your account")
}

// issueOTP supersedes any previous code for the address and purpose, stores a
// fresh one with a 10-minute expiry and mails it.
func (h *AuthHandler) issueOTP(email, purpose string) error {
	if err := h.DB.Where("email = ? AND purpose = ?", email, purpose).
		Delete(&models.OTP{}).Error; err != nil {
		return fmt.Errorf("delete old otp: %w", err)
	}

	code := generateOTP()
	otp := models.OTP{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(otpTTL),
	}
	if err := h.DB.Create(&otp).Error; err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if h.Mailer != nil {
		if err := h.Mailer.Send(email, "Your verification code", mail.OTPBody(code)); err != nil {
			return err
		}
	}
	return nil
}

// consumeOTP validates a code and deletes it, so each code works once.
func (h *AuthHandler) consumeOTP(email, code, purpose string) error {
	var otp models.OTP
	if err := h.DB.Where("email = ? AND code = ? AND purpose = ?", email, code, purpose).
		First(&otp).Error; err != nil {
		return errors.New("invalid or expired OTP")
	}
	if time.Now().After(otp.ExpiresAt) {
		h.DB.Delete(&otp)
		return errors.New("invalid or expired OTP")
	}
	return h.DB.Delete(&otp).Error
}

func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_verify_otp")

	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.consumeOTP(req.Email, req.OTP, models.OTPPurposeLogin); err != nil {
		l.Warn("verify_otp_failed", "status", 400, "reason", err.Error())
		return respondError(c, http.StatusBadRequest, "invalid or expired OTP")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return respondError(c, http.StatusNotFound, "user not found")
	}

	if err := h.setSessionCookies(c, &user); err != nil {
		l.Error("verify_otp_failed", "status", 500, "reason", "cannot create token", "error", err)
		return respondError(c, http.StatusInternalServerError, "cannot create token")
	}

	publish(c, h.Producer, "user_events", map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("login_success", "userID", user.ID)
	return respondMessage(c, http.StatusOK, echo.Map{
		"id":       user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"is_admin": user.Role == "admin",
	}, "OTP verified")
}

func (h *AuthHandler) setSessionCookies(c echo.Context, user *models.User) error {
	access, err := service.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		return err
	}
	refresh, jti, err := service.SignRefreshToken(user.ID, user.Role, h.RefreshSecret)
	if err != nil {
		return err
	}
	if err := service.SaveRefreshToken(h.DB, refresh, jti, user.Role, user.ID); err != nil {
		return err
	}

	c.SetCookie(service.CreateCookie("accessToken", access, "/", time.Now().Add(service.AccessTTL)))
	c.SetCookie(service.CreateCookie("refreshToken", refresh, "/", time.Now().Add(service.RefreshTTL)))
	return nil
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if refreshCookie, err := c.Cookie("refreshToken"); err == nil {
		if err := h.DB.Model(&models.RefreshToken{}).
			Where("token = ?", service.HashToken(refreshCookie.Value)).
			Update("revoked", true).Error; err != nil {
			l.Error("logout_failed", "status", 500, "reason", "cannot revoke refreshToken", "error", err)
		}
	} else {
		l.Warn("logout_without_refresh_cookie")
	}

	c.SetCookie(service.DeleteCookie("refreshToken", "/"))
	c.SetCookie(service.DeleteCookie("accessToken", "/"))
	l.Info("logout_success")
	return respondMessage(c, http.StatusOK, nil, "logged out")
}

// SendResetOTP starts the password-reset flow.
func (h *AuthHandler) SendResetOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_reset_send_otp")

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		l.Warn("reset_send_otp_failed", "status", 404, "reason", "user_not_found")
		return respondError(c, http.StatusNotFound, "user not found")
	}

	if err := h.issueOTP(user.Email, models.OTPPurposeReset); err != nil {
		l.Error("reset_send_otp_failed", "status", 500, "error", err)
		return respondError(c, http.StatusInternalServerError, "failed to send OTP")
	}

	return respondMessage(c, http.StatusOK, nil, "OTP sent")
}

// VerifyResetOTP consumes the reset code and answers with a short-lived reset
// token that UpdatePassword requires.
func (h *AuthHandler) VerifyResetOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_reset_verify_otp")

	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.consumeOTP(req.Email, req.OTP, models.OTPPurposeReset); err != nil {
		l.Warn("reset_verify_otp_failed", "status", 400)
		return respondError(c, http.StatusBadRequest, "invalid or expired OTP")
	}

	claims := jwt.MapClaims{
		"email":   req.Email,
		"purpose": "reset_password",
		"exp":     time.Now().Add(otpTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.JWTSecret)
	if err != nil {
		l.Error("reset_verify_otp_failed", "status", 500, "error", err)
		return respondError(c, http.StatusInternalServerError, "cannot create token")
	}

	return respondMessage(c, http.StatusOK, echo.Map{"reset_token": token}, "OTP verified")
}

func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_update_password")

	var req struct {
		ResetToken string `json:"reset_token"`
		Password   string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || len(req.Password) < 8 {
		return respondError(c, http.StatusBadRequest, "a password of at least 8 characters is required")
	}

	token, err := jwt.Parse(req.ResetToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		l.Warn("update_password_failed", "status", 400, "reason", "invalid_token")
		return respondError(c, http.StatusBadRequest, "invalid or expired reset token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != "reset_password" {
		return respondError(c, http.StatusBadRequest, "invalid reset token")
	}
	email, _ := claims["email"].(string)

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("update_password_failed", "status", 500, "error", err)
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	res := h.DB.Model(&models.User{}).Where("email = ?", email).Update("password_hash", pwHash)
	if res.Error != nil {
		l.Error("update_password_failed", "status", 500, "error", res.Error)
		return respondError(c, http.StatusInternalServerError, "internal error")
	}
	if res.RowsAffected == 0 {
		return respondError(c, http.StatusNotFound, "user not found")
	}

	l.Info("update_password_success", "email", email)
	return respondMessage(c, http.StatusOK, nil, "password updated")
}
