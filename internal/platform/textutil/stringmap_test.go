package textutil

import (
	"reflect"
	"testing"
)

func TestPlainText(t *testing.T) {
	cases := map[string]struct {
		in    string
		limit int
		want  string
	}{
		"strips markup":     {in: "<b>Pedido</b>  pronto\t para\nretirada", want: "Pedido pronto para\nretirada"},
		"keeps entities":    {in: "tinta & papel", want: "tinta & papel"},
		"drops control":     {in: "ok\x00\x07!", want: "ok!"},
		"caps runes":        {in: "impressão", limit: 7, want: "impress"},
		"blank stays blank": {in: "   ", want: ""},
	}
	for name, tc := range cases {
		if got := PlainText(tc.in, tc.limit); got != tc.want {
			t.Fatalf("%s: expected %q got %q", name, tc.want, got)
		}
	}
}

func TestNormalizeStringMap(t *testing.T) {
	t.Helper()

	t.Run("trims keys and values", func(t *testing.T) {
		input := map[string]string{
			" Title ":     " About ",
			"description": " Learn ",
			"empty":       " ",
			" ":           "ignored",
			"":            "ignore",
		}

		expected := map[string]string{
			"Title":       "About",
			"description": "Learn",
			"empty":       "",
		}

		actual := NormalizeStringMap(input)
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for nil or empty input", func(t *testing.T) {
		if NormalizeStringMap(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeStringMap(map[string]string{}) != nil {
			t.Fatalf("expected nil for empty map")
		}
	})
}
