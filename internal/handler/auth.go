package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/middleware"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository"
	"github.com/DoHyunDaniel/reservation-api-project/internal/utils"
)

// UserAccounts stores sign-up credentials.
type UserAccounts interface {
	Create(ctx context.Context, email, password string, role model.Role, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RefreshTokens persists hashed refresh tokens.
type RefreshTokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthSettings are the token and hashing parameters of AuthHandler.
type AuthSettings struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    AuthSettings
	Users  UserAccounts
	Tokens RefreshTokens
}

func NewAuthHandler(cfg AuthSettings, u UserAccounts, t RefreshTokens) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // CUSTOMER | OWNER
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func authError(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}

// Register creates a CUSTOMER or OWNER account and signs it in. ADMIN
// accounts are provisioned out of band.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "CREDENTIALS_REQUIRED", "email/password required")
	}
	role := model.ParseRole(req.Role)
	if role != model.RoleOwner {
		role = model.RoleCustomer
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	uid, err := h.Users.Create(ctx, req.Email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return authError(c, http.StatusConflict, "EMAIL_EXISTS", "email already exists")
		}
		slog.Error("create user failed", slog.Any("error", err))
		return authError(c, http.StatusInternalServerError, "INTERNAL", "create user failed")
	}
	return h.issue(ctx, c, http.StatusCreated, model.User{ID: uid, Email: req.Email, Role: role})
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "CREDENTIALS_REQUIRED", "email/password required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("load user failed", slog.Any("error", err))
		return authError(c, http.StatusInternalServerError, "INTERNAL", "query failed")
	}
	if err != nil || !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return authError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	}
	return h.issue(ctx, c, http.StatusOK, u)
}

// Refresh exchanges a refresh token for a new pair. The old refresh token
// is revoked in the same step so it can be used only once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "REFRESH_TOKEN_REQUIRED", "refresh_token required")
	}
	next, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authError(c, http.StatusInternalServerError, "INTERNAL", "issue refresh failed")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	oldHash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	userID, err := h.Tokens.Rotate(ctx, oldHash, utils.HashRefreshRaw(next.Raw), next.Exp)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return authError(c, http.StatusUnauthorized, "INVALID_REFRESH", "invalid refresh")
		}
		slog.Error("rotate refresh token failed", slog.Any("error", err))
		return authError(c, http.StatusInternalServerError, "INTERNAL", "refresh failed")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return authError(c, http.StatusUnauthorized, "INVALID_REFRESH", "invalid refresh")
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authError(c, http.StatusInternalServerError, "INTERNAL", "issue access failed")
	}
	return c.JSON(http.StatusOK, authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: string(u.Role)},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: next.Raw, Expires: next.Exp},
	})
}

// Logout revokes the refresh token in the body or, without one, every
// refresh token of the bearer.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return authError(c, http.StatusUnauthorized, "INVALID_REFRESH", "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return authError(c, http.StatusInternalServerError, "INTERNAL", "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return badRequest(c, "LOGOUT_TARGET_REQUIRED", "provide Authorization header or refresh_token")
	}
	p, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
	if err != nil {
		return authError(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, p.UserID); err != nil {
		return authError(c, http.StatusInternalServerError, "INTERNAL", "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me echoes the caller resolved from the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	return c.JSON(http.StatusOK, echo.Map{"user_id": p.UserID, "role": p.Role})
}

func (h *AuthHandler) issue(ctx context.Context, c echo.Context, status int, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authError(c, http.StatusInternalServerError, "INTERNAL", "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authError(c, http.StatusInternalServerError, "INTERNAL", "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		slog.Error("store refresh token failed", slog.Any("error", err))
		return authError(c, http.StatusInternalServerError, "INTERNAL", "save refresh failed")
	}
	return c.JSON(status, authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: string(u.Role)},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
