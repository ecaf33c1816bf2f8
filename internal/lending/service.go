package lending

import (
	"context"
	"crypto/rand"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	ulid "github.com/oklog/ulid/v2"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/auth"
	"library-backend/internal/platform/config"
)

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// -------------- Service --------------

type Repository interface {
	Lend(ctx context.Context, l *Lending) error
	Return(ctx context.Context, lendingULID string, actor auth.Identity, at time.Time) (*Lending, error)
	List(ctx context.Context, f Filter) ([]Lending, int64, error)
}

type Service struct {
	repo       Repository
	clock      Clock
	id         IDGen
	loanPeriod time.Duration
}

func NewService(conn *sqlx.DB, cfg config.LendingConfig) *Service {
	return newService(NewStore(conn), realClock{}, ulidGen{}, cfg.LoanPeriod)
}

func newService(repo Repository, clock Clock, id IDGen, loanPeriod time.Duration) *Service {
	return &Service{repo: repo, clock: clock, id: id, loanPeriod: loanPeriod}
}

// POST /lendings
func (s *Service) LendTo(ctx context.Context, actor auth.Identity, bookID uint64) (LendingResponse, error) {
	if bookID == 0 {
		return LendingResponse{}, apperr.ErrValidation("book_id required")
	}

	now := s.clock.Now()
	l := &Lending{
		ULID:         s.id.NewULID(now),
		BookID:       bookID,
		UserID:       actor.UserID,
		CheckedOutAt: now,
		DueDate:      now.Add(s.loanPeriod),
	}
	// 在庫確認から減算までストア側で行ロックを取って行う
	if err := s.repo.Lend(ctx, l); err != nil {
		return LendingResponse{}, err
	}
	log.Printf("[INFO] lent: lending=%s book=%d user=%d due=%s", l.ULID, l.BookID, l.UserID, l.DueDate.Format(time.DateOnly))
	return toResponse(l, now), nil
}

// DELETE /lendings/:lending_ulid
func (s *Service) ReturnLoan(ctx context.Context, actor auth.Identity, lendingULID string) (LendingResponse, error) {
	lendingULID = strings.TrimSpace(lendingULID)
	if _, err := ulid.ParseStrict(lendingULID); err != nil {
		return LendingResponse{}, apperr.ErrNotFound("貸出記録が見つかりません")
	}

	now := s.clock.Now()
	l, err := s.repo.Return(ctx, lendingULID, actor, now)
	if err != nil {
		return LendingResponse{}, err
	}
	log.Printf("[INFO] returned: lending=%s book=%d user=%d", l.ULID, l.BookID, l.UserID)
	return toResponse(l, now), nil
}

type ListParams struct {
	UserID      *uint64
	BookID      *uint64
	Outstanding bool
	Limit       int
	Offset      int
}

// GET /lendings 一般ユーザーは自分の貸出のみ
func (s *Service) List(ctx context.Context, actor auth.Identity, p ListParams) (ListResult, error) {
	f := Filter{BookID: p.BookID, Outstanding: p.Outstanding, Limit: p.Limit, Offset: p.Offset}
	switch {
	case !actor.Admin:
		uid := actor.UserID
		f.UserID = &uid
	case p.UserID != nil:
		f.UserID = p.UserID
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, total, err := s.repo.List(ctx, f)
	if err != nil {
		return ListResult{}, err
	}
	now := s.clock.Now()
	items := make([]LendingResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toResponse(&rows[i], now))
	}

	next := f.Offset + f.Limit
	if next >= int(total) {
		next = 0
	} // 0=終端
	return ListResult{Items: items, Total: total, NextOffset: next}, nil
}
