package csvfeed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/housingetl/internal/adapters/csvfeed"
)

type stubGetter struct {
	body []byte
	err  error
}

func (s stubGetter) Get(context.Context, string) ([]byte, error) { return s.body, s.err }

func TestFeed_FetchTable(t *testing.T) {
	body := "lle_codigo,lle_origenpax,lle_periodo,lle_valor\nUS,\"Estados Unidos\",201501,350\nES,España,201501\n"
	rows, err := csvfeed.New(stubGetter{body: []byte(body)}).FetchTable(context.Background(), "http://example.test/a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1][1] != "Estados Unidos" {
		t.Errorf("unexpected origin %q", rows[1][1])
	}
	if len(rows[2]) != 3 {
		t.Errorf("short rows should be kept as is, got %v", rows[2])
	}
}

func TestFeed_PropagatesRetrievalError(t *testing.T) {
	want := errors.New("boom")
	_, err := csvfeed.New(stubGetter{err: want}).FetchTable(context.Background(), "http://example.test")
	if !errors.Is(err, want) {
		t.Fatalf("expected retrieval error, got %v", err)
	}
}

func TestDecode_Semicolon(t *testing.T) {
	rows, err := csvfeed.Decode([]byte("a;b\n1;2\n"), ';')
	if err != nil {
		t.Fatal(err)
	}
	if rows[1][1] != "2" {
		t.Errorf("unexpected rows %v", rows)
	}
}
