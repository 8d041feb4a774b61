package services

import (
	"fmt"

	"cancionero/internal/models"
)

// IdentityKey is the session slot holding the authenticated user's name.
const IdentityKey = "user_name"

// Session is the per-request session slot. sessions.Session from
// gin-contrib satisfies it.
type Session interface {
	Get(key interface{}) interface{}
	Set(key interface{}, val interface{})
	Delete(key interface{})
	Save() error
}

// StartSession records the user's name as the session identity.
func StartSession(session Session, user *models.User) error {
	session.Set(IdentityKey, user.Name)
	if err := session.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func RequireSession(session Session) (string, error) {
	if session == nil {
		return "", ErrUnauthenticated
	}
	name, ok := session.Get(IdentityKey).(string)
	if !ok || name == "" {
		return "", ErrUnauthenticated
	}
	return name, nil
}

// RequireOwnership fails closed unless the session identity is exactly
// claimedName. Whether claimedName exists is never consulted.
func RequireOwnership(session Session, claimedName string) error {
	name, err := RequireSession(session)
	if err != nil {
		return err
	}
	if name != claimedName {
		return ErrForbidden
	}
	return nil
}

// ClearSession removes the identity; clearing an empty session is a no-op.
func ClearSession(session Session) error {
	if session.Get(IdentityKey) == nil {
		return nil
	}
	session.Delete(IdentityKey)
	if err := session.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
