package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/conorfennell/qbank/internal/domain"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	// bcrypt silently truncates beyond 72 bytes; reject instead.
	maxPasswordBytes = 72
)

// userIDKey is the echo context key the auth middleware stores the
// resolved owner id under. Every protected handler reads it; there is
// no fallback identity.
const userIDKey = "user_id"

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
}

type credentialsIn struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type userOut struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var payload credentialsIn
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}
	if len(payload.Password) > maxPasswordBytes {
		return echo.NewHTTPError(http.StatusBadRequest, "password too long (max 72 bytes)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(payload.Email)),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.InsertUser(c.Request().Context(), user); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, userOut{ID: user.ID, Email: user.Email})
}

func (s *Server) handleLogin(c echo.Context) error {
	var payload credentialsIn
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	user, err := s.db.FindUserByEmail(c.Request().Context(), email)
	if err != nil {
		return err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	if err := s.issueSession(c, user.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userOut{ID: user.ID, Email: user.Email})
}

func (s *Server) handleRefresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookie)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}
	claims, err := s.parseToken(cookie.Value, tokenTypeRefresh)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	user, err := s.db.FindUserByID(c.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}

	if err := s.issueSession(c, user.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(c echo.Context) error {
	s.clearCookie(c, accessCookie, "/")
	s.clearCookie(c, refreshCookie, "/v1/auth")
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(c echo.Context) error {
	user, err := s.db.FindUserByID(c.Request().Context(), ownerID(c))
	if err != nil {
		return err
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}
	return c.JSON(http.StatusOK, userOut{ID: user.ID, Email: user.Email})
}

// requireUser resolves the authenticated user from the access token
// cookie and stores the owner id in the request context. Requests
// without a valid token never reach the handlers behind it.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(accessCookie)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
		}
		claims, err := s.parseToken(cookie.Value, tokenTypeAccess)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		c.Set(userIDKey, claims.Subject)
		return next(c)
	}
}

// ownerID returns the resolved owner id for the current request.
func ownerID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// issueSession signs fresh access and refresh tokens for the user and
// sets both auth cookies.
func (s *Server) issueSession(c echo.Context, userID string) error {
	access, err := s.signToken(userID, tokenTypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return err
	}
	refresh, err := s.signToken(userID, tokenTypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	s.setCookie(c, accessCookie, access, "/", s.cfg.AccessTokenTTL)
	// The refresh cookie only travels to the auth endpoints.
	s.setCookie(c, refreshCookie, refresh, "/v1/auth", s.cfg.RefreshTokenTTL)
	return nil
}

func (s *Server) signToken(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	})
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *Server) parseToken(tokenString, wantType string) (*tokenClaims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.TokenType != wantType {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &claims, nil
}

// Auth cookies are HttpOnly always and Secure outside dev mode, where
// the browser would refuse them without TLS.
func (s *Server) setCookie(c echo.Context, name, value, path string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   !s.cfg.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(c echo.Context, name, path string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.cfg.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
}
