package igdb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/gamedex/internal/model"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type nopRecorder struct{}

func (nopRecorder) RecordProviderFetch(string, bool)    {}
func (nopRecorder) RecordProviderLatency(time.Duration) {}
func (nopRecorder) RecordTokenRefresh(bool)             {}
func (nopRecorder) RecordSearchSubqueries(int)          {}
func (nopRecorder) RecordCacheAccess(string, bool)      {}
func (nopRecorder) RecordHTTPStatus(int)                {}

func newTestClient(srv *httptest.Server) *Client {
	tokens := NewTokenSource(srv.Client(), newTestLogger(), srv.URL+"/token", "client-id", "secret", "seed-token")
	c := NewClient(srv.Client(), tokens, newTestLogger(), nopRecorder{}, 5*time.Second, 10*time.Second)
	c.SetEndpoint(srv.URL + "/games")
	return c
}

func TestSearchSendsCredentialHeaders(t *testing.T) {
	var gotClientID, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClientID = r.Header.Get("Client-ID")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`[{"id":1,"name":"Grand Theft Auto V"}]`))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	games, err := client.Search(context.Background(), "gta", 100)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(games) != 1 || games[0].ID != 1 {
		t.Errorf("games = %+v, want one game with ID 1", games)
	}
	if gotClientID != "client-id" {
		t.Errorf("Client-ID header = %q, want %q", gotClientID, "client-id")
	}
	if gotAuth != "Bearer seed-token" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer seed-token")
	}
	if !strings.Contains(gotBody, `search "gta"`) {
		t.Errorf("request body = %q, want search clause included", gotBody)
	}
	if !strings.Contains(gotBody, "limit 100") {
		t.Errorf("request body = %q, want limit clause included", gotBody)
	}
}

func TestPostClassifiesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	client := newTestClient(srv)

	_, err := client.Search(context.Background(), "gta", 10)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Search error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamAuthExpired {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamAuthExpired)
	}
}

func TestPostClassifiesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	client := newTestClient(srv)

	_, err := client.Search(context.Background(), "gta", 10)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Search error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamUnavailable)
	}
}

func TestGameByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	game, err := client.GameByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("GameByID returned error: %v", err)
	}
	if game != nil {
		t.Errorf("game = %+v, want nil for empty response", game)
	}
}

func TestBrowseExcludesHistoryIDs(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	if _, err := client.Browse(context.Background(), []int64{5, 6, 7}, 50, 100); err != nil {
		t.Fatalf("Browse returned error: %v", err)
	}
	if !strings.Contains(gotBody, "id != (5,6,7)") {
		t.Errorf("request body = %q, want exclusion clause included", gotBody)
	}
	if !strings.Contains(gotBody, "offset 100") {
		t.Errorf("request body = %q, want offset clause included", gotBody)
	}
}

func TestSimilarGameIDsDecodesGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			[{"id":1,"similar_games":[{"id":10},{"id":11}]}],
			[{"id":2,"similar_games":[{"id":11},{"id":12}]}]
		]`))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	groups, err := client.SimilarGameIDs(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("SimilarGameIDs returned error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0] != 10 || groups[0][1] != 11 {
		t.Errorf("groups[0] = %v, want [10 11]", groups[0])
	}
	if len(groups[1]) != 2 || groups[1][0] != 11 || groups[1][1] != 12 {
		t.Errorf("groups[1] = %v, want [11 12]", groups[1])
	}
}

func TestTokenSourceRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("client_id") != "client-id" || q.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","expires_in":5000000}`))
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.Client(), newTestLogger(), srv.URL, "client-id", "secret", "seed-token")

	cred, err := ts.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if cred.AccessToken != "fresh-token" {
		t.Errorf("AccessToken = %q, want %q", cred.AccessToken, "fresh-token")
	}
	if got := ts.Credential().AccessToken; got != "fresh-token" {
		t.Errorf("Credential().AccessToken = %q, want %q", got, "fresh-token")
	}
}

func TestTokenSourceRefreshFailureKeepsCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.Client(), newTestLogger(), srv.URL, "client-id", "secret", "seed-token")

	if _, err := ts.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh returned nil error on 403, want error")
	}
	if got := ts.Credential().AccessToken; got != "seed-token" {
		t.Errorf("Credential().AccessToken = %q, want seed token kept", got)
	}
}
