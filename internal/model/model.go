package model

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Page mirrors the paginator shape the front-end already consumes.
type Page[T any] struct {
	CurrentPage int   `json:"current_page"`
	Data        []T   `json:"data"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
	From        *int  `json:"from"`
	To          *int  `json:"to"`
}

func NewPage[T any](rows []T, page, perPage int, total int64) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	p := Page[T]{CurrentPage: page, Data: rows, PerPage: perPage, Total: total, LastPage: last}
	if len(rows) > 0 {
		from := (page-1)*perPage + 1
		to := from + len(rows) - 1
		p.From, p.To = &from, &to
	}
	return p
}

// HasMore reports whether pages exist after the current one.
func (p Page[T]) HasMore() bool { return p.CurrentPage < p.LastPage }

type MemberStats struct {
	Total         int64 `json:"total"`
	Fideles       int64 `json:"fideles"`
	NouvellesAmes int64 `json:"nouvelles_ames"`
	Baptises      int64 `json:"baptises"`
	Suivis        int64 `json:"suivis"`
	SansFamille   int64 `json:"sans_famille"`
	SansParrain   int64 `json:"sans_parrain"`
	SansPasteur   int64 `json:"sans_pasteur"`
}

type BulkSmsRequest struct {
	MemberIDs []uint `json:"member_ids"`
	// FideleIDs is the older name of MemberIDs, still sent by some clients.
	FideleIDs []uint `json:"fidele_ids"`
	Message   string `json:"message"`
}

// IDs returns the requested member ids under either key.
func (r BulkSmsRequest) IDs() []uint {
	if len(r.MemberIDs) > 0 {
		return r.MemberIDs
	}
	return r.FideleIDs
}

type BulkSmsResult struct {
	Message        string `json:"message"`
	RecipientCount int    `json:"recipient_count"`
	Sent           int    `json:"sent"`
	Failed         int    `json:"failed"`
	Status         string `json:"status"`
	SkippedNoPhone int    `json:"skipped_no_phone"`
}
