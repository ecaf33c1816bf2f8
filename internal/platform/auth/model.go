package auth

import "time"

type User struct {
	ID             uint64    `db:"id"`
	Name           string    `db:"name"`
	EmailAddress   string    `db:"email_address"`
	PasswordDigest string    `db:"password_digest"`
	Admin          bool      `db:"admin"`
	CreatedAt      time.Time `db:"created_at"`
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

func (u *User) Role() string {
	if u.Admin {
		return RoleAdmin
	}
	return RoleUser
}

// Identity は各操作に明示的に渡す呼び出し元
type Identity struct {
	UserID uint64
	Admin  bool
}

// 公開レスポンス（password_digest は出さない）
type UserResponse struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	EmailAddress string    `json:"email_address"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
}

func toResponse(u *User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		EmailAddress: u.EmailAddress,
		Admin:        u.Admin,
		CreatedAt:    u.CreatedAt,
	}
}
