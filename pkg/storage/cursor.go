package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Position is a point in the total order of a listing. Records are ordered
// by CreatedAt, ties broken by Seq.
type Position struct {
	CreatedAt time.Time
	Seq       int64
}

// Compare returns -1, 0 or +1 depending on whether p sorts before, at, or
// after other.
func (p Position) Compare(other Position) int {
	if c := p.CreatedAt.Compare(other.CreatedAt); c != 0 {
		return c
	}
	switch {
	case p.Seq < other.Seq:
		return -1
	case p.Seq > other.Seq:
		return 1
	}
	return 0
}

// Cursor marks the last record of a page. Scope is the thread id for item
// listings and empty for thread listings. A cursor is only valid for the
// scope and order it was minted for.
type Cursor struct {
	Scope string
	Order string
	Position
}

type cursorWire struct {
	Scope     string `json:"s,omitempty"`
	Order     string `json:"o"`
	CreatedAt int64  `json:"t"`
	Seq       int64  `json:"q"`
}

// Encode renders the cursor as an opaque base64url token.
func (c Cursor) Encode() string {
	data, _ := json.Marshal(cursorWire{
		Scope:     c.Scope,
		Order:     c.Order,
		CreatedAt: c.CreatedAt.UnixNano(),
		Seq:       c.Seq,
	})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var w cursorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if w.Order != OrderAsc && w.Order != OrderDesc {
		return Cursor{}, fmt.Errorf("%w: unknown order %q", ErrInvalidCursor, w.Order)
	}
	return Cursor{
		Scope: w.Scope,
		Order: w.Order,
		Position: Position{
			CreatedAt: time.Unix(0, w.CreatedAt).UTC(),
			Seq:       w.Seq,
		},
	}, nil
}
