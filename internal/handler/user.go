package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/apperr"
	"github.com/iliyamo/planbox/internal/middleware"
	"github.com/iliyamo/planbox/internal/model"
	"github.com/iliyamo/planbox/internal/queue"
	"github.com/iliyamo/planbox/internal/session"
	"github.com/iliyamo/planbox/internal/validation"
)

// UserHandler serves the caller's own profile. It shares the auth
// dependencies because profile changes refresh the session.
type UserHandler struct {
	*AuthHandler
}

func NewUserHandler(a *AuthHandler) *UserHandler { return &UserHandler{AuthHandler: a} }

type profileReq struct {
	Name *string `json:"name" validate:"omitnil,max=100"`
}

func (r *profileReq) normalize() { r.Name = trimName(r.Name) }

type passwordReq struct {
	Password    string `json:"password" validate:"required"`
	NewPassword string `json:"newPassword"`
}

func (*passwordReq) Credentials() {}

func (r *passwordReq) Check() []apperr.Issue {
	return validation.Password("newPassword", r.NewPassword)
}

type profileResp struct {
	User    model.User    `json:"user"`
	Session session.Token `json:"session"`
}

// Me returns the caller's profile without the password hash.
func (h *UserHandler) Me() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[empty]) (any, error) {
		return h.Users.GetByID(r.Ctx, r.Owner.ID)
	})
}

// UpdateProfile changes the display name and refreshes the session so the
// name claim matches.
func (h *UserHandler) UpdateProfile() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[profileReq]) (any, error) {
		u, err := h.Users.UpdateName(r.Ctx, r.Owner.ID, r.In.Name)
		if err != nil {
			return nil, err
		}
		name := u.DisplayName()
		tok, err := h.Sessions.Refresh(middleware.Credential(r.Echo), session.ClaimsUpdate{Name: &name})
		if err != nil {
			return nil, apperr.ErrUnauthorized
		}
		h.setCookie(r.Echo, tok)
		return profileResp{User: u, Session: tok}, nil
	})
}

// ChangePassword requires the current password and a new one that passes
// the strength rules and differs from it.
func (h *UserHandler) ChangePassword() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[passwordReq]) (any, error) {
		u, err := h.Users.GetByID(r.Ctx, r.Owner.ID)
		if err != nil {
			return nil, err
		}
		if !h.Hasher.Verify(r.In.Password, u.PasswordHash) {
			return nil, apperr.New(apperr.CodeInvalidPassword, http.StatusBadRequest, "Current password is incorrect")
		}
		if r.In.NewPassword == r.In.Password {
			return nil, apperr.New(apperr.CodeInvalidInput, http.StatusBadRequest, "New password must be different from the current one")
		}
		digest, err := h.Hasher.Hash(r.In.NewPassword)
		if err != nil {
			return nil, err
		}
		if err := h.Users.UpdatePasswordHash(r.Ctx, r.Owner.ID, digest); err != nil {
			return nil, err
		}
		h.emit(r.Ctx, queue.NewEvent(queue.UserPasswordChanged, r.Owner.ID))
		return message{Message: "Password updated"}, nil
	})
}
