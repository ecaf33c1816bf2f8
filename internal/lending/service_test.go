package lending

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/auth"
)

// memRepo はストアと同じ規則（在庫チェックと減算を1単位で行う）を mutex で再現する
type memRepo struct {
	mu       sync.Mutex
	stock    map[uint64]int
	lendings []Lending
	writes   int
	lastF    Filter
}

func newMemRepo(stock map[uint64]int) *memRepo {
	return &memRepo{stock: stock}
}

func (m *memRepo) Lend(_ context.Context, l *Lending) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.stock[l.BookID]
	if !ok {
		return apperr.ErrNotFound("本が見つかりません")
	}
	if n <= 0 {
		return errOutOfStock()
	}
	m.stock[l.BookID] = n - 1
	l.ID = uint64(len(m.lendings) + 1)
	l.BookTitle = fmt.Sprintf("book-%d", l.BookID)
	m.lendings = append(m.lendings, *l)
	m.writes++
	return nil
}

func (m *memRepo) Return(_ context.Context, id string, actor auth.Identity, at time.Time) (*Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.lendings {
		l := &m.lendings[i]
		if l.ULID != id {
			continue
		}
		if !actor.Admin && l.UserID != actor.UserID {
			return nil, errLendingNotFound()
		}
		if !l.Outstanding() {
			return nil, apperr.ErrAlreadyReturned("この本は既に返却されています")
		}
		m.stock[l.BookID]++
		l.ReturnedAt = sql.NullTime{Time: at, Valid: true}
		m.writes++
		cp := *l
		return &cp, nil
	}
	return nil, errLendingNotFound()
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Lending, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastF = f
	var out []Lending
	for _, l := range m.lendings {
		if f.UserID != nil && l.UserID != *f.UserID {
			continue
		}
		if f.Outstanding && !l.Outstanding() {
			continue
		}
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type seqID struct{ n int }

// 有効な ULID 文字列を連番で返す
func (g *seqID) NewULID(t time.Time) string {
	g.n++
	return fmt.Sprintf("01HZZZZZZZZZZZZZZZZZZZZ%03d", g.n)
}

var (
	alice = auth.Identity{UserID: 10}
	bob   = auth.Identity{UserID: 11}
	admin = auth.Identity{UserID: 1, Admin: true}
	start = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
)

func setup(stock map[uint64]int) (*Service, *memRepo, *fixedClock) {
	repo := newMemRepo(stock)
	clock := &fixedClock{t: start}
	return newService(repo, clock, &seqID{}, 14*24*time.Hour), repo, clock
}

func TestLendTo(t *testing.T) {
	svc, repo, _ := setup(map[uint64]int{1: 2})

	res, err := svc.LendTo(context.Background(), alice, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res.UserID)
	assert.Equal(t, start, res.CheckedOutAt)
	assert.Equal(t, start.AddDate(0, 0, 14), res.DueDate)
	assert.Nil(t, res.ReturnedAt)
	assert.False(t, res.Returned)
	assert.False(t, res.Overdue)
	assert.Equal(t, 1, repo.stock[1])
}

func TestLendToOutOfStockWritesNothing(t *testing.T) {
	svc, repo, _ := setup(map[uint64]int{1: 0})

	_, err := svc.LendTo(context.Background(), alice, 1)
	api, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeOutOfStock, api.Code)
	assert.Equal(t, 409, api.Status)
	assert.Equal(t, 0, repo.stock[1])
	assert.Empty(t, repo.lendings)
	assert.Zero(t, repo.writes)
}

func TestLendToUnknownBook(t *testing.T) {
	svc, _, _ := setup(map[uint64]int{})
	_, err := svc.LendTo(context.Background(), alice, 99)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = svc.LendTo(context.Background(), alice, 0)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestLendAndReturnRestoresStock(t *testing.T) {
	const n = 5
	svc, repo, _ := setup(map[uint64]int{1: n})
	ctx := context.Background()

	var ids []string
	for i := 0; i < n; i++ {
		res, err := svc.LendTo(ctx, alice, 1)
		require.NoError(t, err)
		ids = append(ids, res.LendingULID)
	}
	assert.Equal(t, 0, repo.stock[1])
	_, err := svc.LendTo(ctx, alice, 1)
	assert.True(t, apperr.Is(err, apperr.CodeOutOfStock))

	for _, id := range ids {
		res, err := svc.ReturnLoan(ctx, alice, id)
		require.NoError(t, err)
		assert.True(t, res.Returned)
		require.NotNil(t, res.ReturnedAt)
	}
	assert.Equal(t, n, repo.stock[1])
	// 返却しても貸出記録は残る
	assert.Len(t, repo.lendings, n)
}

func TestReturnLoanTwice(t *testing.T) {
	svc, repo, _ := setup(map[uint64]int{1: 1})
	ctx := context.Background()
	res, err := svc.LendTo(ctx, alice, 1)
	require.NoError(t, err)

	_, err = svc.ReturnLoan(ctx, alice, res.LendingULID)
	require.NoError(t, err)
	_, err = svc.ReturnLoan(ctx, alice, res.LendingULID)
	assert.True(t, apperr.Is(err, apperr.CodeAlreadyReturned))
	assert.Equal(t, 1, repo.stock[1])
}

func TestReturnLoanOwnership(t *testing.T) {
	svc, _, _ := setup(map[uint64]int{1: 1})
	ctx := context.Background()
	res, err := svc.LendTo(ctx, alice, 1)
	require.NoError(t, err)

	_, err = svc.ReturnLoan(ctx, bob, res.LendingULID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = svc.ReturnLoan(ctx, admin, res.LendingULID)
	assert.NoError(t, err)
}

func TestReturnLoanMalformedID(t *testing.T) {
	svc, repo, _ := setup(map[uint64]int{1: 1})
	_, err := svc.ReturnLoan(context.Background(), alice, "not-a-ulid")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Zero(t, repo.writes)
}

func TestList(t *testing.T) {
	svc, repo, clock := setup(map[uint64]int{1: 3, 2: 3})
	ctx := context.Background()
	a1, err := svc.LendTo(ctx, alice, 1)
	require.NoError(t, err)
	_, err = svc.LendTo(ctx, alice, 2)
	require.NoError(t, err)
	_, err = svc.LendTo(ctx, bob, 1)
	require.NoError(t, err)
	_, err = svc.ReturnLoan(ctx, alice, a1.LendingULID)
	require.NoError(t, err)

	// 一般ユーザーは user_id を指定しても自分の分だけ
	other := bob.UserID
	res, err := svc.List(ctx, alice, ListParams{UserID: &other})
	require.NoError(t, err)
	require.NotNil(t, repo.lastF.UserID)
	assert.Equal(t, alice.UserID, *repo.lastF.UserID)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 50, repo.lastF.Limit)

	res, err = svc.List(ctx, alice, ListParams{Outstanding: true})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.False(t, res.Items[0].Overdue)

	// 期限切れ
	clock.t = start.AddDate(0, 0, 15)
	res, err = svc.List(ctx, admin, ListParams{Outstanding: true})
	require.NoError(t, err)
	assert.Nil(t, repo.lastF.UserID)
	require.Len(t, res.Items, 2)
	for _, it := range res.Items {
		assert.True(t, it.Overdue)
	}

	res, err = svc.List(ctx, admin, ListParams{UserID: &other})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}
