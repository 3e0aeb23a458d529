package models

import "time"

const (
	RoleClient = "client"
	RoleAdmin  = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User is a local portal account bound to exactly one VoIP.ms client.
// Email is stored lower-case; VoipmsClientID is the upstream tenant id.
type User struct {
	ID             string    `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	VoipmsClientID string    `json:"voipms_client_id" db:"voipms_client_id"`
	Company        string    `json:"company" db:"company"`
	Role           string    `json:"role" db:"role"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PublicFields is the user shape returned by the auth endpoints.
func (u *User) PublicFields() map[string]any {
	return map[string]any{
		"id":      u.ID,
		"email":   u.Email,
		"company": u.Company,
		"role":    u.Role,
	}
}
