package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/apperr"
	"rollcall/internal/model"
	"rollcall/internal/store"
)

// PasswordVerifier checks a password against a stored digest.
type PasswordVerifier interface {
	Verify(password, digest string) bool
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

// Guard logs users in, resolves tokens to users and enforces role and class
// ownership rules.
type Guard struct {
	users   store.Users
	classes store.Classes
	tokens  *TokenService
	hasher  PasswordVerifier
}

func NewGuard(users store.Users, classes store.Classes, tokens *TokenService, hasher PasswordVerifier) *Guard {
	return &Guard{users: users, classes: classes, tokens: tokens, hasher: hasher}
}

// unknownUserDigest is verified against when the username does not exist so
// both failure paths cost one bcrypt comparison.
const unknownUserDigest = "$2a$12$C6UzMDM.H6dfI/f/IKcEeO5nZ6R2eW1n0gAxRrQqUlpx8VmP9mKCa"

// Login checks credentials and issues a session token. Unknown usernames and
// bad passwords both fail with apperr.ErrInvalidCredentials.
func (g *Guard) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := g.users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.hasher.Verify(password, unknownUserDigest)
			return Session{}, apperr.ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !g.hasher.Verify(password, u.PasswordHash) {
		return Session{}, apperr.ErrInvalidCredentials
	}
	token, exp, err := g.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate verifies token and loads its user. A user deleted after
// issuance fails with apperr.ErrUnauthorized.
func (g *Guard) Authenticate(ctx context.Context, token string) (model.User, error) {
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return model.User{}, err
	}
	u, err := g.users.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, apperr.ErrUnauthorized
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// Authorize fails with apperr.ErrForbidden unless u has role.
func (g *Guard) Authorize(u model.User, role model.Role) error {
	if u.Role != role {
		return apperr.New(apperr.ErrForbidden, "only "+string(role)+"s can access this")
	}
	return nil
}

// AuthorizeOwnership returns the class classID if u owns it. Classes that do
// not exist and classes owned by someone else both fail with
// apperr.ErrNotFound.
func (g *Guard) AuthorizeOwnership(ctx context.Context, u model.User, classID string) (model.Class, error) {
	c, err := g.classes.OwnedClass(ctx, classID, u.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Class{}, apperr.New(apperr.ErrNotFound, "class not found")
		}
		return model.Class{}, fmt.Errorf("load class: %w", err)
	}
	return c, nil
}
