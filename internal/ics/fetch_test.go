package ics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"syncademic/internal/domain"
)

func fetchKind(t *testing.T, err error) domain.ErrorKind {
	t.Helper()
	var serr *domain.SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("error not typed: %v", err)
	}
	return serr.Kind
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		fmt.Fprint(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{})
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.HasPrefix(string(body), "BEGIN:VCALENDAR") {
		t.Errorf("body = %q", body)
	}
}

func TestFetchStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   domain.ErrorKind
	}{
		{http.StatusInternalServerError, domain.ErrSourceUnreachable},
		{http.StatusBadGateway, domain.ErrSourceUnreachable},
		{http.StatusNotFound, domain.ErrSourceInvalid},
		{http.StatusForbidden, domain.ErrSourceInvalid},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := NewFetcher(FetcherOptions{}).Fetch(context.Background(), srv.URL)
			if got := fetchKind(t, err); got != tc.want {
				t.Errorf("kind = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFetchRejectsWrongContentType(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>not a calendar</html>")
	}))
	defer srv.Close()

	_, err := NewFetcher(FetcherOptions{}).Fetch(context.Background(), srv.URL)
	if got := fetchKind(t, err); got != domain.ErrSourceInvalid {
		t.Errorf("kind = %s", got)
	}
}

func TestFetchRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{MaxPayloadBytes: 1024})
	_, err := f.Fetch(context.Background(), srv.URL)
	if got := fetchKind(t, err); got != domain.ErrSourceInvalid {
		t.Errorf("kind = %s", got)
	}
}

func TestFetchFollowsRedirectsUpToCap(t *testing.T) {
	t.Parallel()

	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/hop/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Path, "/hop/%d", &n)
		if n == 0 {
			w.Header().Set("Content-Type", "text/calendar")
			fmt.Fprint(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
	})

	f := NewFetcher(FetcherOptions{MaxRedirects: 3})
	if _, err := f.Fetch(context.Background(), srv.URL+"/hop/2"); err != nil {
		t.Errorf("short redirect chain rejected: %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/hop/5"); err == nil {
		t.Error("redirect chain past the cap accepted")
	}
}

func TestFetchCancelledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFetcher(FetcherOptions{}).Fetch(ctx, srv.URL)
	if got := fetchKind(t, err); got != domain.ErrCancelled {
		t.Errorf("kind = %s", got)
	}
}

func TestFetchEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := NewFetcher(FetcherOptions{}).Fetch(context.Background(), "")
	if got := fetchKind(t, err); got != domain.ErrSourceInvalid {
		t.Errorf("kind = %s", got)
	}
}

func TestValidateContentType(t *testing.T) {
	t.Parallel()

	accept := []string{"", "text/calendar", "text/plain; charset=utf-8", "application/calendar+json", "application/vnd.example+ics"}
	for _, ct := range accept {
		if err := validateContentType(ct); err != nil {
			t.Errorf("%q rejected: %v", ct, err)
		}
	}
	reject := []string{"text/html", "application/json", "::bad::"}
	for _, ct := range reject {
		if err := validateContentType(ct); err == nil {
			t.Errorf("%q accepted", ct)
		}
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	got := redactURL("https://cal.example.edu/private/token-abc123/feed.ics")
	if strings.Contains(got, "token-abc123") {
		t.Errorf("token leaked: %q", got)
	}
	if !strings.HasPrefix(got, "https://cal.example.edu") {
		t.Errorf("host lost: %q", got)
	}
}
