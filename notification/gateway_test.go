package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateway_LogsInOnceAndReusesToken(t *testing.T) {
	var logins, sends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			logins.Add(1)
			_ = json.NewEncoder(w).Encode(loginResponse{Token: "tok", ExpiresIn: 3600})
		case "/sms":
			sends.Add(1)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var req sendRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "94771234567", req.Msisdn[0].Mobile)
			assert.Equal(t, "COSMO", req.SourceAddress)
			_ = json.NewEncoder(w).Encode(sendResponse{Status: "success"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "u", "p", "COSMO", srv.Client())
	require.NoError(t, g.Send(t.Context(), "94771234567", "hello"))
	require.NoError(t, g.Send(t.Context(), "94771234567", "again"))

	assert.EqualValues(t, 1, logins.Load())
	assert.EqualValues(t, 2, sends.Load())
}

func TestHTTPGateway_RelogsInAfterUnauthorized(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			n := logins.Add(1)
			_ = json.NewEncoder(w).Encode(loginResponse{Token: map[int32]string{1: "stale", 2: "fresh"}[n], ExpiresIn: 3600})
		case "/sms":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(sendResponse{Status: "success"})
		}
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "u", "p", "", srv.Client())
	require.NoError(t, g.Send(t.Context(), "94771234567", "hello"))
	assert.EqualValues(t, 2, logins.Load())
}

func TestHTTPGateway_ReportsProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			_ = json.NewEncoder(w).Encode(loginResponse{Token: "tok", ExpiresIn: 3600})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "u", "p", "", srv.Client())
	err := g.Send(t.Context(), "94771234567", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}
