package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FakeBox is an httptest server standing in for both the Box API and its
// token endpoint. Every request it sees is recorded.
type FakeBox struct {
	*httptest.Server

	// AccessToken is returned by the token endpoint.
	AccessToken string
	// ValidToken, if set, is the only bearer value the API accepts.
	ValidToken string
	// TokenStatus, if set, makes the token endpoint fail with that status.
	TokenStatus int

	mu       sync.Mutex
	requests []*http.Request
	forms    []map[string][]string
}

// NewFakeBox starts a FakeBox that is closed when the test ends.
func NewFakeBox(t *testing.T) *FakeBox {
	t.Helper()

	f := &FakeBox{AccessToken: "fake-access-token"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", f.handleToken)
	mux.HandleFunc("GET /2.0/users/me", f.handleCurrentUser)
	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)

	return f
}

// TokenURL is the URL of the fake token endpoint.
func (f *FakeBox) TokenURL() string {
	return f.URL + "/oauth2/token"
}

// Requests returns the recorded requests in arrival order.
func (f *FakeBox) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*http.Request(nil), f.requests...)
}

// TokenRequests returns the form bodies posted to the token endpoint.
func (f *FakeBox) TokenRequests() []map[string][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]map[string][]string(nil), f.forms...)
}

func (f *FakeBox) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(r.Context()))
		f.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (f *FakeBox) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.forms = append(f.forms, r.PostForm)
	f.mu.Unlock()

	if f.TokenStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.TokenStatus)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"rejected by fake"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": f.AccessToken,
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (f *FakeBox) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || (f.ValidToken != "" && token != f.ValidToken) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":  "user",
		"id":    "11446498",
		"name":  "Aaron Levie",
		"login": "ceo@example.com",
	})
}

// NewCallToolRequest creates and returns a CallToolRequest for the named tool.
//
// The Authorization header is set to a Bearer value when token is not empty.
func NewCallToolRequest(name, token string) *mcp.CallToolRequest {
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name},
		Extra:  &mcp.RequestExtra{Header: map[string][]string{}},
	}
	if token != "" {
		req.Extra.Header["Authorization"] = []string{"Bearer " + token}
	}

	return req
}
