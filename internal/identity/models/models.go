package models

import (
	"strings"
	"time"

	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
)

// User is a registered inbox owner. Records are created by the login
// collaborator; this service only reads them (and writes for seeding).
type User struct {
	ID          id.RecipientID `json:"id"`
	DisplayName string         `json:"display_name"`
	AvatarURL   string         `json:"avatar_url"`
	Email       string         `json:"email"`
	LastSeen    time.Time      `json:"last_seen"`
}

// Validate checks the fields every stored user must carry.
func (u *User) Validate() error {
	if _, err := id.ParseRecipientID(string(u.ID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "user id is invalid")
	}
	if strings.TrimSpace(u.DisplayName) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "user display name is required")
	}
	return nil
}

// Profile is the public subset shown to anonymous senders. It never carries
// the email address.
type Profile struct {
	ID          id.RecipientID
	DisplayName string
	AvatarURL   string
}

func (u *User) Profile() *Profile {
	return &Profile{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}
