package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Pagination carries the cursor token and page size bound from list
// request query strings.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=10" validate:"gte=1,lte=250"`
}

// Cursor marks a position in a (created_at, id) descending keyset scan.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// EncodeCursor serializes a cursor into an opaque page token.
func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a page token produced by EncodeCursor.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// BuildCursorPageInfo derives page info from a result set that was fetched
// with one extra row. More than limit rows means another page exists; the
// cursor of the last row within the limit becomes the next token.
func BuildCursorPageInfo[T any](rows []*T, limit int32, cursorOf func(*T) string) *PageInfo {
	if len(rows) == 0 {
		return &PageInfo{}
	}

	info := &PageInfo{}
	if len(rows) > int(limit) {
		info.HasMore = true
		rows = rows[:limit]
	}
	info.NextPageToken = cursorOf(rows[len(rows)-1])
	return info
}
