package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPResolverParsesFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Ahmedabad" {
			t.Errorf("unexpected query %q", got)
		}
		w.Write([]byte(`[{"lat":"23.0225","lon":"72.5714","display_name":"Ahmedabad, Gujarat"}]`))
	}))
	defer srv.Close()

	p, err := NewHTTPResolver(srv.URL).Resolve(context.Background(), "Ahmedabad")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.Lat != 23.0225 || p.Lng != 72.5714 || p.Name != "Ahmedabad, Gujarat" {
		t.Fatalf("unexpected place: %+v", p)
	}
}

func TestHTTPResolverEmptyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if _, err := NewHTTPResolver(srv.URL).Resolve(context.Background(), "nowhere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
