package models

import "time"

type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password,omitempty"` // bcrypt digest, never plaintext
	Image        string    `json:"image,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	BirthDate    string    `json:"birth_date,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

// Public returns the response shape for a user, with the credential
// digest stripped.
func (u *User) Public() map[string]any {
	return map[string]any{
		"_id":          u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"image":        u.Image,
		"bio":          u.Bio,
		"birth_date":   u.BirthDate,
		"is_active":    u.IsActive,
		"is_staff":     u.IsStaff,
		"is_superuser": u.IsSuperuser,
		"created_at":   u.CreatedAt,
	}
}
