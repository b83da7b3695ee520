package paginator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gate4ai/toolgate/shared"
)

// Source supplies a bounded window of an ordered result set. Implementations
// belong to the operation adapter; the paginator never sees the whole set.
type Source interface {
	Window(ctx context.Context, filter string, offset, limit int) ([]map[string]interface{}, error)
}

// cursor is the decoded form of the opaque page token. The filter hash binds
// the token to the filter it was issued for.
type cursor struct {
	Offset     int    `json:"o"`
	FilterHash string `json:"f"`
	IssuedAt   int64  `json:"t"`
}

// Page is one bounded slice of a result set.
type Page struct {
	Items         []map[string]interface{} `json:"items"`
	NextPageToken string                   `json:"nextPageToken,omitempty"`
	// MayBeStale is set whenever the page was reached through a cursor:
	// the underlying set may have mutated since the cursor was issued, so
	// totals and boundaries are not guaranteed stable.
	MayBeStale bool `json:"mayBeStale,omitempty"`
}

// Paginator converts an opaque cursor plus a page-size request into a
// bounded slice and the next cursor.
type Paginator struct {
	defaultPageSize int
	maxPageSize     int
	logger          *zap.Logger
}

func New(defaultPageSize, maxPageSize int, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultPageSize <= 0 {
		defaultPageSize = shared.DefaultPageSize
	}
	if maxPageSize <= 0 {
		maxPageSize = shared.MaxPageSize
	}
	return &Paginator{
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		logger:          logger,
	}
}

// Page fetches one page of src under the given filter. An empty pageToken
// starts from the beginning; pageSize 0 selects the default, and any value
// is clamped to [1, maxPageSize].
func (p *Paginator) Page(ctx context.Context, src Source, filter string, pageSize int, pageToken string) (*Page, error) {
	pageSize = p.clamp(pageSize)

	offset := 0
	fromCursor := false
	if pageToken != "" {
		cur, err := decodeCursor(pageToken)
		if err != nil {
			p.logger.Debug("Rejecting malformed page token", zap.Error(err))
			return nil, shared.NewError(shared.ErrorInvalidCursor, "page token is malformed").
				WithSuggestion("restart listing without a pageToken")
		}
		if cur.FilterHash != shared.HashFingerprint(filter) {
			return nil, shared.NewError(shared.ErrorInvalidCursor, "page token was issued for a different filter").
				WithSuggestion("restart listing without a pageToken")
		}
		offset = cur.Offset
		fromCursor = true
	}

	// Fetch one extra item to learn whether another page exists.
	items, err := src.Window(ctx, filter, offset, pageSize+1)
	if err != nil {
		return nil, fmt.Errorf("fetch window at offset %d: %w", offset, err)
	}

	page := &Page{MayBeStale: fromCursor}
	if len(items) > pageSize {
		page.Items = items[:pageSize]
		token, err := encodeCursor(cursor{
			Offset:     offset + pageSize,
			FilterHash: shared.HashFingerprint(filter),
			IssuedAt:   time.Now().Unix(),
		})
		if err != nil {
			return nil, fmt.Errorf("encode cursor: %w", err)
		}
		page.NextPageToken = token
	} else {
		page.Items = items
	}
	if page.Items == nil {
		page.Items = []map[string]interface{}{}
	}
	return page, nil
}

func (p *Paginator) clamp(pageSize int) int {
	if pageSize <= 0 {
		pageSize = p.defaultPageSize
	}
	if pageSize > p.maxPageSize {
		pageSize = p.maxPageSize
	}
	return pageSize
}

func encodeCursor(c cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeCursor(token string) (*cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	if c.Offset < 0 {
		return nil, fmt.Errorf("negative offset in token")
	}
	return &c, nil
}
