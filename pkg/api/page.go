package api

// Page is one page of a cursor-paginated listing. After is an opaque
// cursor for the next page; it is nil when HasMore is false.
type Page[T any] struct {
	Object  string  `json:"object"`
	Data    []T     `json:"data"`
	After   *string `json:"after"`
	HasMore bool    `json:"has_more"`
}

// NewPage builds a list page, normalizing a nil slice to an empty one.
func NewPage[T any](data []T, after string, hasMore bool) *Page[T] {
	if data == nil {
		data = []T{}
	}
	p := &Page[T]{Object: "list", Data: data, HasMore: hasMore}
	if hasMore && after != "" {
		p.After = &after
	}
	return p
}
