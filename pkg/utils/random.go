package utils

import (
	"github.com/google/uuid"
)

// NewExternalID generates the opaque public identifier of a user.
func NewExternalID() string {
	return uuid.NewString()
}

// NewRelationKey generates the opaque key of a user-song favorite.
func NewRelationKey() string {
	return uuid.NewString()
}
