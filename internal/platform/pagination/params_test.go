package pagination

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.PageSize != DefaultPageSize || params.Offset != 0 {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestParseClampsAndDecodesToken(t *testing.T) {
	token := EncodeToken(Cursor{Offset: 40})
	req := httptest.NewRequest("GET", "/api/v1/orders?pageSize=500&pageToken="+token, nil)
	params, err := FromRequest(req, Options{MaxPageSize: 20})
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}
	if params.PageSize != 20 {
		t.Fatalf("expected clamp to 20, got %d", params.PageSize)
	}
	if params.Offset != 40 || params.PageToken != token {
		t.Fatalf("unexpected cursor %+v", params)
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	if _, err := Parse(url.Values{"pageSize": {"-1"}}, Options{}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, err := Parse(url.Values{"pageToken": {"%%%"}}, Options{}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestWindow(t *testing.T) {
	start, end, next, err := Window(5, "", 2)
	if err != nil || start != 0 || end != 2 || next == "" {
		t.Fatalf("first page: %d %d %q %v", start, end, next, err)
	}
	start, end, next, err = Window(5, next, 2)
	if err != nil || start != 2 || end != 4 {
		t.Fatalf("second page: %d %d %v", start, end, err)
	}
	start, end, next, err = Window(5, next, 2)
	if err != nil || start != 4 || end != 5 || next != "" {
		t.Fatalf("last page: %d %d %q %v", start, end, next, err)
	}
}

func TestNextToken(t *testing.T) {
	if NextToken(0, 10, 3) != "" {
		t.Fatalf("short page must not produce a token")
	}
	cursor, err := DecodeToken(NextToken(10, 10, 10))
	if err != nil || cursor.Offset != 20 {
		t.Fatalf("unexpected cursor %+v %v", cursor, err)
	}
	if EncodeToken(Cursor{}) != "" {
		t.Fatalf("zero offset should encode empty")
	}
}
