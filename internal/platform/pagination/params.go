package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits pageSize.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps the supported pageSize to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params bundles the page window requested by a client.
type Params struct {
	PageSize  int
	PageToken string
	Offset    int
}

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// FromRequest parses pageSize and pageToken from the request query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes the provided query values and returns normalised Params.
func Parse(values url.Values, opts Options) (Params, error) {
	size, err := ParsePageSize(values.Get("pageSize"), opts)
	if err != nil {
		return Params{}, err
	}
	token := strings.TrimSpace(values.Get("pageToken"))
	cursor, err := DecodeToken(token)
	if err != nil {
		return Params{}, err
	}
	return Params{PageSize: size, PageToken: token, Offset: cursor.Offset}, nil
}

// ParsePageSize validates raw against opts, returning the default when empty and
// clamping to the maximum.
func ParsePageSize(raw string, opts Options) (int, error) {
	def := opts.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	limit := opts.MaxPageSize
	if limit <= 0 {
		limit = DefaultMaxPageSize
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return min(def, limit), nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPageSize, raw)
	}
	return min(size, limit), nil
}

// Window resolves a page token and size into slice bounds over total items and
// returns the token for the following page, empty on the last page.
func Window(total int, pageToken string, pageSize int) (start, end int, next string, err error) {
	cursor, err := DecodeToken(pageToken)
	if err != nil {
		return 0, 0, "", err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	start = min(cursor.Offset, total)
	end = min(start+pageSize, total)
	if end < total {
		next = EncodeToken(Cursor{Offset: end})
	}
	return start, end, next, nil
}

// NextToken returns the token following a page of fetched items read at offset,
// or empty when fewer than pageSize items came back.
func NextToken(offset, pageSize, fetched int) string {
	if pageSize <= 0 || fetched < pageSize {
		return ""
	}
	return EncodeToken(Cursor{Offset: offset + fetched})
}
