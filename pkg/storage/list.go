package storage

import (
	"errors"
	"fmt"

	"github.com/rhuss/chatkit/pkg/api"
)

// Listing orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListOptions controls a paginated listing. An empty Order means desc.
type ListOptions struct {
	After string
	Limit int
	Order string
}

// Query is a validated ListOptions.
type Query struct {
	Order  string
	Limit  int
	Cursor *Cursor
}

// Resolve validates the options for a listing over scope and decodes the
// cursor. Every failure is an invalid_request *api.APIError.
func (o ListOptions) Resolve(scope string) (Query, error) {
	q := Query{Order: o.Order, Limit: o.Limit}
	if q.Order == "" {
		q.Order = OrderDesc
	}
	if q.Order != OrderAsc && q.Order != OrderDesc {
		return Query{}, api.NewInvalidRequestError("order",
			fmt.Sprintf("order must be %q or %q", OrderAsc, OrderDesc))
	}
	if q.Limit <= 0 {
		return Query{}, api.NewInvalidRequestError("limit", "limit must be positive")
	}
	if o.After == "" {
		return q, nil
	}

	c, err := DecodeCursor(o.After)
	if err != nil {
		return Query{}, invalidCursor("malformed cursor")
	}
	if c.Scope != scope {
		return Query{}, invalidCursor("cursor belongs to a different listing")
	}
	if c.Order != q.Order {
		return Query{}, invalidCursor(fmt.Sprintf("cursor was issued for order %q", c.Order))
	}
	q.Cursor = &c
	return q, nil
}

// Asc reports whether the query lists oldest first.
func (q Query) Asc() bool {
	return q.Order == OrderAsc
}

// Next returns the cursor token for a page whose last record sits at pos.
func (q Query) Next(scope string, pos Position) string {
	return Cursor{Scope: scope, Order: q.Order, Position: pos}.Encode()
}

func invalidCursor(msg string) error {
	e := api.NewInvalidRequestError("after", msg)
	e.Code = "invalid_cursor"
	return e
}

// IsInvalidCursor reports whether err stems from a bad pagination cursor.
func IsInvalidCursor(err error) bool {
	if errors.Is(err, ErrInvalidCursor) {
		return true
	}
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.Code == "invalid_cursor"
}
