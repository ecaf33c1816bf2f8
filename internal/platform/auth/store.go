package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	SetAdmin(ctx context.Context, id uint64, admin bool) error
}

type Store struct{ db *sqlx.DB }

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, name, email_address, password_digest, admin, created_at`

// 見つからなければ (nil, nil)
func (s *Store) GetByID(ctx context.Context, id uint64) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email_address = ? LIMIT 1`, email)
}

func (s *Store) getOne(ctx context.Context, q string, arg any) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) Create(ctx context.Context, u *User) error {
	const q = `
INSERT INTO users (name, email_address, password_digest, admin, created_at)
VALUES (?, ?, ?, ?, ?)
`
	res, err := s.db.ExecContext(ctx, q, u.Name, u.EmailAddress, u.PasswordDigest, u.Admin, u.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func (s *Store) SetAdmin(ctx context.Context, id uint64, admin bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET admin = ? WHERE id = ?`, admin, id)
	return err
}
