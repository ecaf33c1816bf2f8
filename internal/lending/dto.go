package lending

import "time"

type CreateLendingRequest struct {
	BookID uint64 `json:"book_id" binding:"required"`
}

type LendingResponse struct {
	LendingULID  string     `json:"lending_ulid"`
	BookID       uint64     `json:"book_id"`
	BookTitle    string     `json:"book_title,omitempty"`
	UserID       uint64     `json:"user_id"`
	CheckedOutAt time.Time  `json:"checked_out_at"`
	DueDate      time.Time  `json:"due_date"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	Returned     bool       `json:"returned"`
	Overdue      bool       `json:"overdue"`
}

type ListResult struct {
	Items      []LendingResponse `json:"items"`
	Total      int64             `json:"total"`
	NextOffset int               `json:"next_offset"`
}

func toResponse(l *Lending, now time.Time) LendingResponse {
	res := LendingResponse{
		LendingULID:  l.ULID,
		BookID:       l.BookID,
		BookTitle:    l.BookTitle,
		UserID:       l.UserID,
		CheckedOutAt: l.CheckedOutAt,
		DueDate:      l.DueDate,
		Returned:     !l.Outstanding(),
		Overdue:      l.Overdue(now),
	}
	if l.ReturnedAt.Valid {
		t := l.ReturnedAt.Time
		res.ReturnedAt = &t
	}
	return res
}
