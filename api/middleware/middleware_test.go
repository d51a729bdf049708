package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0x360x36/miauhome.cl/api/responses"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
	"github.com/0x360x36/miauhome.cl/pkg/types"
)

type stubParser struct {
	identity *auth.Identity
	err      error
	tokens   []string
}

func (s *stubParser) Parse(token string) (*auth.Identity, error) {
	s.tokens = append(s.tokens, token)
	return s.identity, s.err
}

func TestGuestProfileIssuesCookieWhenMissing(t *testing.T) {
	var seen string
	handler := GuestProfile(GuestCookie{Name: "mh_guest", MaxAge: time.Hour}, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GuestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if seen == "" {
		t.Fatalf("expected guest id in context")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if cookies[0].Name != "mh_guest" || cookies[0].Value != seen {
		t.Fatalf("cookie mismatch: %+v vs %q", cookies[0], seen)
	}
	if !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected httponly lax cookie, got %+v", cookies[0])
	}
	if cookies[0].MaxAge != 3600 {
		t.Fatalf("expected max age 3600, got %d", cookies[0].MaxAge)
	}
}

func TestGuestProfileKeepsValidCookie(t *testing.T) {
	const existing = "5f0c6a9e-4b8e-4c1e-9d7a-1e2f3a4b5c6d"
	var seen string
	handler := GuestProfile(GuestCookie{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GuestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: "mh_guest", Value: existing})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != existing {
		t.Fatalf("expected %q, got %q", existing, seen)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no new cookie")
	}
}

func TestGuestProfileReplacesMalformedCookie(t *testing.T) {
	var seen string
	handler := GuestProfile(GuestCookie{Name: "mh_guest"}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GuestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: "mh_guest", Value: "../../etc/passwd"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" || seen == "../../etc/passwd" {
		t.Fatalf("expected a fresh guest id, got %q", seen)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Fatalf("expected replacement cookie")
	}
}

func TestIdentityWithoutHeaderProceedsAsGuest(t *testing.T) {
	parser := &stubParser{}
	called := false
	handler := Identity(parser, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if IdentityFromContext(r.Context()) != nil {
			t.Fatalf("expected no identity")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatalf("expected next handler to run")
	}
	if len(parser.tokens) != 0 {
		t.Fatalf("parser should not be called")
	}
}

func TestIdentityAttachesParsedIdentity(t *testing.T) {
	parser := &stubParser{identity: &auth.Identity{Token: "tok", Subject: "42"}}
	var got *auth.Identity
	handler := Identity(parser, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.Subject != "42" {
		t.Fatalf("expected identity for subject 42, got %+v", got)
	}
	if len(parser.tokens) != 1 || parser.tokens[0] != "tok" {
		t.Fatalf("unexpected parsed tokens %v", parser.tokens)
	}
}

func TestIdentityRejectsInvalidToken(t *testing.T) {
	cases := map[string]struct {
		header string
		err    error
	}{
		"malformed header": {header: "Token abc"},
		"rejected token":   {header: "Bearer abc", err: pkgerrors.New(pkgerrors.CodeUnauthorized, "token expired")},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			parser := &stubParser{err: tc.err}
			handler := Identity(parser, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler must not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if rec.Header().Get(responses.SessionExpiredHeader) != "true" {
				t.Fatalf("expected session expired header")
			}
			var env types.ErrorEnvelope
			if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Error.Code != string(pkgerrors.CodeUnauthorized) {
				t.Fatalf("expected unauthorized code, got %q", env.Error.Code)
			}
		})
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLoggingRecordsStatusAndSize(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: logger.FormatJSON})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", rec.Code)
	}
	for _, want := range []string{`"status":418`, `"bytes":3`, `"path":"/api/v1/cart"`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %s in entry=%s", want, buf.String())
		}
	}
}

func TestLoggingSkipsHealthAndMetrics(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: logger.FormatJSON})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if buf.Len() != 0 {
		t.Fatalf("health and metrics requests should not be logged, got %s", buf.String())
	}
}

func TestCORSExposesSessionHeader(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got == "" {
		t.Fatalf("expected exposed headers")
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "bad id\twith spaces")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got == "" || got == "bad id\twith spaces" {
		t.Fatalf("expected a minted request id, got %q", got)
	}
}
