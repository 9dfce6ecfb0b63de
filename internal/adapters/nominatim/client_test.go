package nominatim_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"findmyroom/internal/adapters/nominatim"
	"findmyroom/internal/domain"
)

func newClient(t *testing.T, base string, opts ...nominatim.Option) *nominatim.Client {
	t.Helper()
	cl, err := nominatim.New(base, "findmyroom-test/1.0", 100, opts...) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestClient_Search_StringAndNumericCoords(t *testing.T) {
	var gotQuery, gotUA, gotCountries string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotCountries = r.URL.Query().Get("countrycodes")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"lat":"19.1197","lon":"72.8464","display_name":"Andheri West, Mumbai","importance":0.6},
			{"lat":19.2,"lon":72.9}
		]`))
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL, nominatim.WithCountryCodes("in"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := cl.Search(ctx, "Andheri West, Mumbai, Maharashtra, India")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := []domain.GeoCandidate{
		{Lat: 19.1197, Lon: 72.8464, DisplayName: "Andheri West, Mumbai"},
		{Lat: 19.2, Lon: 72.9},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	if gotQuery != "Andheri West, Mumbai, Maharashtra, India" {
		t.Fatalf("unexpected q: %q", gotQuery)
	}
	if gotUA != "findmyroom-test/1.0" {
		t.Fatalf("unexpected user agent: %q", gotUA)
	}
	if gotCountries != "in" {
		t.Fatalf("unexpected countrycodes: %q", gotCountries)
	}
}

func TestClient_Search_EmptyArrayIsNoMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	got, err := newClient(t, ts.URL).Search(context.Background(), "Nowhere, India")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}
}

func TestClient_Search_NoRetryOnServerError(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL).Search(context.Background(), "Idukki, Kerala, India")
	var se *nominatim.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected exactly one call, got %d", n)
	}
}

func TestClient_Search_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL).Search(context.Background(), "Kerala, India")
	if !errors.Is(err, nominatim.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestClient_Search_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":    `<html>blocked</html>`,
		"missing lon": `[{"lat":"10.0"}]`,
		"bad lat":     `[{"lat":"north","lon":"76.9"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer ts.Close()

			_, err := newClient(t, ts.URL).Search(context.Background(), "x")
			if !errors.Is(err, nominatim.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestClient_Search_HonorsContextDeadline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newClient(t, ts.URL).Search(ctx, "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNew_RequiresUserAgent(t *testing.T) {
	if _, err := nominatim.New("", " ", 1); err == nil {
		t.Fatalf("expected error for empty user agent")
	}
}

type countingTransport struct {
	calls int32
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.next.RoundTrip(r)
}

func TestClient_Search_LimitAndInjectedHTTPClient(t *testing.T) {
	var gotLimit string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	tr := &countingTransport{next: http.DefaultTransport}
	cl := newClient(t, ts.URL, nominatim.WithLimit(2), nominatim.WithHTTPClient(&http.Client{Transport: tr}))
	if _, err := cl.Search(context.Background(), "Mumbai, Maharashtra, India"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotLimit != "2" {
		t.Fatalf("limit = %q, want 2", gotLimit)
	}
	if n := atomic.LoadInt32(&tr.calls); n != 1 {
		t.Fatalf("injected client used %d times, want 1", n)
	}

	// non-positive limits keep the default
	cl = newClient(t, ts.URL, nominatim.WithLimit(0))
	if _, err := cl.Search(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotLimit != "5" {
		t.Fatalf("default limit = %q, want 5", gotLimit)
	}
}
