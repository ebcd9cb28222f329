package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/apperr"
	"github.com/iliyamo/planbox/internal/middleware"
	"github.com/iliyamo/planbox/internal/model"
	"github.com/iliyamo/planbox/internal/queue"
	"github.com/iliyamo/planbox/internal/session"
	"github.com/iliyamo/planbox/internal/validation"
)

// UserStore is the part of the user repository the handlers use.
type UserStore interface {
	Create(ctx context.Context, email string, name *string, passwordHash string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	UpdateName(ctx context.Context, id string, name *string) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// Authenticator checks credentials; *auth.Authenticator satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*session.Identity, error)
}

// PasswordHasher is satisfied by auth.Hasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// SessionIssuer is satisfied by *session.Issuer.
type SessionIssuer interface {
	Issue(id session.Identity) (session.Token, error)
	Refresh(raw string, upd session.ClaimsUpdate) (session.Token, error)
}

// AuthHandler serves signup, login, logout and session refresh.
type AuthHandler struct {
	Base
	Users        UserStore
	Auth         Authenticator
	Hasher       PasswordHasher
	Sessions     SessionIssuer
	CookieSecure bool
}

func NewAuthHandler(b Base, users UserStore, authn Authenticator, hasher PasswordHasher, sessions SessionIssuer, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Base: b, Users: users, Auth: authn, Hasher: hasher, Sessions: sessions, CookieSecure: cookieSecure}
}

type signupReq struct {
	Email    string  `json:"email" validate:"required,email,max=254"`
	Password string  `json:"password"`
	Name     *string `json:"name" validate:"omitnil,max=100"`
}

func (*signupReq) Credentials() {}

func (r *signupReq) normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = trimName(r.Name)
}

func (r *signupReq) Check() []apperr.Issue { return validation.Password("password", r.Password) }

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (*loginReq) Credentials() {}

func (r *loginReq) normalize() { r.Email = strings.TrimSpace(r.Email) }

type authResp struct {
	User    model.User    `json:"user"`
	Session session.Token `json:"session"`
}

// Signup creates the account and logs the new user in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	digest, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	u, err := h.Users.Create(ctx, req.Email, req.Name, digest)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	tok, err := h.Sessions.Issue(identityOf(u))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.emit(ctx, queue.NewEvent(queue.UserSignedUp, u.ID))

	h.setCookie(c, tok)
	return c.JSON(http.StatusCreated, authResp{User: u, Session: tok})
}

// Login answers 401 with one message for both unknown email and wrong
// password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	id, err := h.Auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if id == nil {
		return respondError(c, h.Log, apperr.ErrInvalidCredentials)
	}
	u, err := h.Users.GetByID(ctx, id.ID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	tok, err := h.Sessions.Issue(*id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.setCookie(c, tok)
	return c.JSON(http.StatusOK, authResp{User: u, Session: tok})
}

// Logout clears the cookie. The token itself stays valid until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(middleware.SessionCookie("", -1, h.CookieSecure))
	return c.NoContent(http.StatusNoContent)
}

type empty struct{}

// Refresh re-issues the caller's session with name and email re-read from
// the store.
func (h *AuthHandler) Refresh() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[empty]) (any, error) {
		u, err := h.Users.GetByID(r.Ctx, r.Owner.ID)
		if err != nil {
			return nil, err
		}
		name := u.DisplayName()
		tok, err := h.Sessions.Refresh(middleware.Credential(r.Echo), session.ClaimsUpdate{Name: &name, Email: &u.Email})
		if err != nil {
			return nil, apperr.ErrUnauthorized
		}
		h.setCookie(r.Echo, tok)
		return authResp{User: u, Session: tok}, nil
	})
}

func (h *AuthHandler) setCookie(c echo.Context, tok session.Token) {
	maxAge := int(time.Until(tok.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetCookie(middleware.SessionCookie(tok.Value, maxAge, h.CookieSecure))
}

func identityOf(u model.User) session.Identity {
	return session.Identity{ID: u.ID, Email: u.Email, Name: u.DisplayName()}
}

// trimName turns a blank name into no name.
func trimName(name *string) *string {
	if name == nil {
		return nil
	}
	s := strings.TrimSpace(*name)
	if s == "" {
		return nil
	}
	return &s
}
