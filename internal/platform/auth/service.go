package auth

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/config"
	"library-backend/internal/platform/db"
)

var validEmail = regexp.MustCompile(`(?i)^[\w+\-.]+@[a-z\d\-]+(\.[a-z\d\-]+)*\.[a-z]+$`)

const (
	maxNameLen     = 50
	maxEmailLen    = 255
	minPasswordLen = 6
)

type Service struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(conn *sqlx.DB, cfg config.AuthConfig) *Service {
	return newService(NewStore(conn), cfg)
}

func newService(store UserStore, cfg config.AuthConfig) *Service {
	return &Service{
		store:  store,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Secret() []byte { return s.secret }

// NormalizeEmail は前後空白除去と小文字化
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterInput struct {
	Name                 string
	EmailAddress         string
	Password             string
	PasswordConfirmation *string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (UserResponse, error) {
	u, err := s.create(ctx, in, false)
	if err != nil {
		return UserResponse{}, err
	}
	log.Printf("[INFO] user registered: id=%d", u.ID)
	return toResponse(u), nil
}

func (s *Service) create(ctx context.Context, in RegisterInput, admin bool) (*User, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.EmailAddress)

	fe := apperr.FieldErrors{}
	switch {
	case name == "":
		fe.Add("name", "can't be blank")
	case utf8.RuneCountInString(name) > maxNameLen:
		fe.Add("name", "is too long (maximum is 50 characters)")
	}
	emailOK := false
	switch {
	case email == "":
		fe.Add("email_address", "can't be blank")
	case utf8.RuneCountInString(email) > maxEmailLen:
		fe.Add("email_address", "is too long (maximum is 255 characters)")
	case !validEmail.MatchString(email):
		fe.Add("email_address", "is invalid")
	default:
		emailOK = true
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		fe.Add("password", "is too short (minimum is 6 characters)")
	}
	if in.PasswordConfirmation != nil && *in.PasswordConfirmation != in.Password {
		fe.Add("password_confirmation", "doesn't match Password")
	}

	if emailOK {
		exists, err := s.store.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if exists != nil {
			fe.Add("email_address", "has already been taken")
		}
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:           name,
		EmailAddress:   email,
		PasswordDigest: string(hash),
		Admin:          admin,
		CreatedAt:      s.now(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		// 同時登録で UNIQUE に負けた場合
		if db.IsDuplicateKey(err) {
			fe.Add("email_address", "has already been taken")
			return nil, fe.Err()
		}
		return nil, err
	}
	return u, nil
}

// Login は認証に成功すると署名済みトークンを返す
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperr.ErrUnauthenticated("invalid email address or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordDigest), []byte(password)); err != nil {
		return "", apperr.ErrUnauthenticated("invalid email address or password")
	}
	return s.IssueToken(u)
}

func (s *Service) IssueToken(u *User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatUint(u.ID, 10),
		"role": u.Role(),
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	})
	return token.SignedString(s.secret)
}

func (s *Service) Me(ctx context.Context, id Identity) (UserResponse, error) {
	u, err := s.store.GetByID(ctx, id.UserID)
	if err != nil {
		return UserResponse{}, err
	}
	if u == nil {
		return UserResponse{}, apperr.ErrNotFound("user not found")
	}
	return toResponse(u), nil
}

// IsAdmin は現在の admin フラグ。削除済みユーザーは false。
func (s *Service) IsAdmin(ctx context.Context, userID uint64) (bool, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u != nil && u.Admin, nil
}

// EnsureAdmin は初期管理者を冪等に用意する。既存ユーザーなら admin に昇格するだけ。
func (s *Service) EnsureAdmin(ctx context.Context, email, name, password string) (UserResponse, bool, error) {
	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return UserResponse{}, false, err
	}
	if u != nil {
		if !u.Admin {
			if err := s.store.SetAdmin(ctx, u.ID, true); err != nil {
				return UserResponse{}, false, err
			}
			u.Admin = true
			log.Printf("[INFO] promoted to admin: id=%d", u.ID)
		}
		return toResponse(u), false, nil
	}

	u, err = s.create(ctx, RegisterInput{Name: name, EmailAddress: email, Password: password}, true)
	if err != nil {
		return UserResponse{}, false, err
	}
	log.Printf("[INFO] admin created: id=%d", u.ID)
	return toResponse(u), true, nil
}
