package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hermod-app/hermod/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostmarkSendEmail(t *testing.T) {
	var (
		gotPath   string
		gotHeader http.Header
		gotBody   PostmarkEmail
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"abc"}`))
	}))
	defer srv.Close()

	c, err := NewPostmarkClient(config.PostmarkConfig{
		BaseURL:     srv.URL + "/",
		ServerToken: "server-token",
		From:        "noreply@example.com",
	})
	require.NoError(t, err)
	require.True(t, c.IsConfigured())

	err = c.SendEmail(context.Background(), "alice@example.com", "Reset", "link")
	require.NoError(t, err)

	assert.Equal(t, "/email", gotPath)
	assert.Equal(t, "server-token", gotHeader.Get("X-Postmark-Server-Token"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "application/json", gotHeader.Get("Accept"))
	assert.Equal(t, PostmarkEmail{
		From:     "noreply@example.com",
		To:       "alice@example.com",
		Subject:  "Reset",
		TextBody: "link",
	}, gotBody)
}

func TestPostmarkBaseURLWithoutTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ErrorCode":0}`))
	}))
	defer srv.Close()

	c, err := NewPostmarkClient(config.PostmarkConfig{BaseURL: srv.URL + "/api", ServerToken: "t", From: "f@example.com"})
	require.NoError(t, err)
	require.NoError(t, c.SendEmail(context.Background(), "to@example.com", "s", "b"))
	assert.Equal(t, "/api/email", gotPath)
}

func TestPostmarkErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid 'To' address"}`))
	}))
	defer srv.Close()

	c, err := NewPostmarkClient(config.PostmarkConfig{BaseURL: srv.URL, ServerToken: "t", From: "f@example.com"})
	require.NoError(t, err)

	err = c.SendEmail(context.Background(), "bad", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid 'To' address")
	assert.Contains(t, err.Error(), "422")
}

func TestPostmarkNotConfigured(t *testing.T) {
	c, err := NewPostmarkClient(config.PostmarkConfig{BaseURL: "https://api.postmarkapp.com/"})
	require.NoError(t, err)
	assert.False(t, c.IsConfigured())
	assert.Error(t, c.SendEmail(context.Background(), "a@example.com", "s", "b"))
}

func TestPostmarkInvalidTimeout(t *testing.T) {
	_, err := NewPostmarkClient(config.PostmarkConfig{BaseURL: "https://api.postmarkapp.com/", Timeout: "soon"})
	assert.Error(t, err)
}
