package entity

import "time"

// Identity is the authenticated-user view emitted on the provider's event
// feed. A nil *Identity on the feed means signed out; at most one identity
// is current at any instant.
type Identity struct {
	ID            string
	DisplayName   *string
	Email         *string
	EmailVerified bool
}

// User represents an account row in the `users` table. Only the fields the
// client core needs; auxiliary profile data lives elsewhere.
type User struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	DisplayName   *string   `db:"display_name"`
	EmailVerified bool      `db:"email_verified"`
	PasswordHash  string    `db:"password_hash"`
	PasswordAlgo  string    `db:"password_algo"`
	Admin         bool      `db:"admin"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Identity projects the account into the event-feed view.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:            u.ID,
		DisplayName:   u.DisplayName,
		Email:         &u.Email,
		EmailVerified: u.EmailVerified,
	}
}
