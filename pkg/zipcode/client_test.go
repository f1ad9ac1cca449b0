package zipcode_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-opform/internal/logging"
	"github.com/goliatone/go-opform/pkg/zipcode"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestMatches(t *testing.T) {
	cases := map[string]bool{
		"01310-100":  true,
		"12345-678":  true,
		"1234":       false,
		"01310100":   false,
		"01310-10":   false,
		"x01310-100": false,
		"01310-1000": false,
		"":           false,
	}
	for code, want := range cases {
		if got := zipcode.Matches(code); got != want {
			t.Fatalf("Matches(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestFetch_Success(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zipcodes/01310-100" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing Accept header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"zipcode":"01310100","state":"SP","neighborhood":"Bela Vista","street":"Av Paulista","city":"São Paulo"}`))
	})

	client := zipcode.New(zipcode.WithBaseURL(srv.URL + "/zipcodes/"))
	got, err := client.Fetch(context.Background(), "01310-100")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := zipcode.Address{State: "SP", Neighborhood: "Bela Vista", Street: "Av Paulista", City: "São Paulo"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("address mismatch (-want +got):\n%s", diff)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestFetch_UsesInjectedHTTPClient(t *testing.T) {
	var seen []string
	client := zipcode.New(
		zipcode.WithBaseURL("https://cep.example.com/v1"),
		zipcode.WithHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			seen = append(seen, r.URL.String())
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       io.NopCloser(strings.NewReader(`{"state":"RJ","neighborhood":"Centro","street":"Rua do Ouvidor","city":"Rio de Janeiro"}`)),
				Request:    r,
			}, nil
		})}),
	)

	got, err := client.Fetch(context.Background(), "20040-030")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := zipcode.Address{State: "RJ", Neighborhood: "Centro", Street: "Rua do Ouvidor", City: "Rio de Janeiro"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("address mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"https://cep.example.com/v1/20040-030"}, seen); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestFetch_PatternSkipsNetwork(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	client := zipcode.New(zipcode.WithBaseURL(srv.URL))

	_, err := client.Fetch(context.Background(), "1234")
	if !errors.Is(err, zipcode.ErrPattern) {
		t.Fatalf("expected ErrPattern, got %v", err)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("no request expected for a malformed code")
	}
}

func TestFetch_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "errors field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[{"type":"not_found","message":"Zipcode not found"}]}`))
			},
			want: zipcode.ErrNotFound,
		},
		{
			name: "errors field on 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"errors":"bad"}`))
			},
			want: zipcode.ErrNotFound,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			want: zipcode.ErrStatus,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newServer(t, tc.handler)
			client := zipcode.New(zipcode.WithBaseURL(srv.URL))
			_, err := client.Fetch(context.Background(), "01310-100")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFetch_NullErrorsIsSuccess(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":null,"state":"PE","city":"Recife"}`))
	})
	client := zipcode.New(zipcode.WithBaseURL(srv.URL))
	got, err := client.Fetch(context.Background(), "50030-230")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.City != "Recife" || got.State != "PE" {
		t.Fatalf("unexpected address %+v", got)
	}
}

func TestFetch_MalformedBody(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>nope</html>`))
	})
	client := zipcode.New(zipcode.WithBaseURL(srv.URL))
	_, err := client.Fetch(context.Background(), "01310-100")
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	client := zipcode.New(zipcode.WithBaseURL(srv.URL), zipcode.WithTimeout(20*time.Millisecond))
	_, err := client.Fetch(context.Background(), "01310-100")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFetch_RateLimited(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"city":"Recife"}`))
	})
	client := zipcode.New(zipcode.WithBaseURL(srv.URL), zipcode.WithRateLimit(0.001, 1))

	if _, err := client.Fetch(context.Background(), "50030-230"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := client.Fetch(context.Background(), "50030-230"); !errors.Is(err, zipcode.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected one outbound call, got %d", atomic.LoadInt32(calls))
	}
}

func TestLookup_SwallowsFailures(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	var buf bytes.Buffer
	logger, err := logging.New(&buf, "debug", "text")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	client := zipcode.New(zipcode.WithBaseURL(srv.URL), zipcode.WithLogger(logger))

	addr, ok := client.Lookup(context.Background(), "01310-100")
	if ok || addr != (zipcode.Address{}) {
		t.Fatalf("expected absent result, got %+v %v", addr, ok)
	}
	if !strings.Contains(buf.String(), "zipcode lookup failed") {
		t.Fatalf("expected warning log, got %q", buf.String())
	}

	if _, ok := client.Lookup(context.Background(), "1234"); ok {
		t.Fatalf("malformed code must be absent")
	}
}
