package models

import "time"

// Profile is the optional personal data attached to an account. A field
// that was never filled in is empty.
type Profile struct {
	UserID      int        `json:"user_id"`
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	PhoneNumber string     `json:"phone_number"`
	Email       string     `json:"email"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ProfileUpdate holds the submitted fields. A nil field is left as is; an
// empty one clears the stored value.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name" form:"first_name"`
	LastName    *string `json:"last_name" form:"last_name"`
	PhoneNumber *string `json:"phone_number" form:"phone_number"`
	Email       *string `json:"email" form:"email"`
}
