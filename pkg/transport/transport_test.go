package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/rs/zerolog"

	"github.com/diegoweb100/vicare-client-go/internal/testutil"
)

type staticTokens struct {
	token string
}

func (s *staticTokens) AccessToken(ctx context.Context) (string, error) {
	return s.token, nil
}

func (s *staticTokens) RefreshToken(ctx context.Context) error {
	return nil
}

func newTestTransport(t *testing.T, mock *testutil.MockViCare, tokens TokenSource) *HTTPTransport {
	t.Helper()
	tr, err := NewHTTPTransport(Config{
		BaseURL:   mock.URL(),
		UserAgent: "vicare-client-go/test",
		Tokens:    tokens,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPTransport: %v", err)
	}
	return tr
}

func TestHTTPTransport_Get(t *testing.T) {
	mock := testutil.NewMockViCare()
	defer mock.Close()

	mock.SetResponse("/installations", testutil.NewFeatureResponse(`{"data":[{"id":123}]}`))

	tr := newTestTransport(t, mock, nil)
	resp, err := tr.Get(context.Background(), "/installations", nil, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if string(resp.Data) != `{"data":[{"id":123}]}` {
		t.Errorf("Data = %s", resp.Data)
	}
	if resp.Headers.Get("ETag") != `"feature-etag-123"` {
		t.Errorf("ETag header missing, got %q", resp.Headers.Get("ETag"))
	}
}

func TestHTTPTransport_GetWithParams(t *testing.T) {
	mock := testutil.NewMockViCare()
	defer mock.Close()

	var gotQuery url.Values
	mock.SetHandler("/features", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	tr := newTestTransport(t, mock, nil)
	params := url.Values{"filter": []string{"heating.dhw"}}
	if _, err := tr.Get(context.Background(), "/features", params, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if gotQuery.Get("filter") != "heating.dhw" {
		t.Errorf("query filter = %q, want heating.dhw", gotQuery.Get("filter"))
	}
}

func TestHTTPTransport_HeadersAndAuth(t *testing.T) {
	mock := testutil.NewMockViCare()
	defer mock.Close()

	tr := newTestTransport(t, mock, &staticTokens{token: "abc123"})

	extra := http.Header{}
	extra.Set("If-None-Match", `"v1"`)

	if _, err := tr.Get(context.Background(), "/features", nil, extra); err != nil {
		t.Fatalf("Get: %v", err)
	}

	h := mock.LastRequestHeader
	if got := h.Get("Authorization"); got != "Bearer abc123" {
		t.Errorf("Authorization = %q, want Bearer abc123", got)
	}
	if got := h.Get("If-None-Match"); got != `"v1"` {
		t.Errorf("If-None-Match = %q, want it forwarded", got)
	}
	if got := h.Get("User-Agent"); got != "vicare-client-go/test" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := h.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("ConditionalCount = %d, want 1", mock.GetConditionalCount())
	}
}

func TestHTTPTransport_Post(t *testing.T) {
	mock := testutil.NewMockViCare()
	defer mock.Close()

	var gotBody []byte
	var gotContentType string
	mock.SetHandler("/features/heating.dhw/commands/setTargetTemperature", func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	})

	tr := newTestTransport(t, mock, nil)
	body := []byte(`{"temperature":50}`)
	resp, err := tr.Post(context.Background(), "/features/heating.dhw/commands/setTargetTemperature", body, nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if string(gotBody) != `{"temperature":50}` {
		t.Errorf("body = %s", gotBody)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

// Non-2xx statuses come back as responses, not errors; classification is
// the orchestrator's concern.
func TestHTTPTransport_StatusPassthrough(t *testing.T) {
	tests := []struct {
		name string
		resp testutil.MockResponse
		want int
	}{
		{"rate limited", testutil.NewRateLimitResponse("30"), http.StatusTooManyRequests},
		{"unauthorized", testutil.NewUnauthorizedResponse(), http.StatusUnauthorized},
		{"server error", testutil.NewServerErrorResponse(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockViCare()
			defer mock.Close()
			mock.SetResponse("/features", tt.resp)

			tr := newTestTransport(t, mock, nil)
			resp, err := tr.Get(context.Background(), "/features", nil, nil)
			if err != nil {
				t.Fatalf("Get returned error for status %d: %v", tt.want, err)
			}
			if resp.Status != tt.want {
				t.Errorf("Status = %d, want %d", resp.Status, tt.want)
			}
		})
	}
}

func TestHTTPTransport_RetryAfterHeader(t *testing.T) {
	mock := testutil.NewMockViCare()
	defer mock.Close()
	mock.SetResponse("/features", testutil.NewRateLimitResponse("3600"))

	tr := newTestTransport(t, mock, nil)
	resp, err := tr.Get(context.Background(), "/features", nil, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := resp.Headers.Get("Retry-After"); got != "3600" {
		t.Errorf("Retry-After = %q, want 3600", got)
	}
}

func TestNewHTTPTransport_RequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPTransport(Config{}, zerolog.Nop()); err == nil {
		t.Error("expected error for missing base URL")
	}
}
