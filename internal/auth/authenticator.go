package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/planbox/internal/model"
	"github.com/iliyamo/planbox/internal/repository"
	"github.com/iliyamo/planbox/internal/session"
)

// CredentialStore is the subset of the user repository needed to log in.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// Authenticator checks an email and password pair against the store.
type Authenticator struct {
	store  CredentialStore
	hasher Hasher
	check  *validator.Validate
	// dummy is compared against when the email is unknown so both failure
	// paths pay for one bcrypt comparison.
	dummy string
}

// NewAuthenticator panics if the hasher cannot produce a digest, which only
// happens with a cost outside bcrypt's range.
func NewAuthenticator(store CredentialStore, hasher Hasher) *Authenticator {
	dummy, err := hasher.Hash("planbox-timing-equalizer")
	if err != nil {
		panic(fmt.Sprintf("auth: build dummy digest: %v", err))
	}
	return &Authenticator{store: store, hasher: hasher, check: validator.New(), dummy: dummy}
}

// Authenticate returns the identity for a valid pair and nil for anything
// else. Unknown email and wrong password are not distinguished. Only store
// failures other than "not found" produce an error.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*session.Identity, error) {
	email = strings.TrimSpace(email)
	if password == "" || a.check.Var(email, "required,email") != nil {
		return nil, nil
	}

	u, err := a.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		// burn a comparison so timing matches the wrong-password path
		a.hasher.Verify(password, a.dummy)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !a.hasher.Verify(password, u.PasswordHash) {
		return nil, nil
	}
	return &session.Identity{ID: u.ID, Email: u.Email, Name: u.DisplayName()}, nil
}
