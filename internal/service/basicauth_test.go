package service

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicHeader(raw string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(raw)))
	return h
}

func TestExtractBasicAuth(t *testing.T) {
	creds, err := ExtractBasicAuth(basicHeader("alice:s3cret"))
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "alice", Password: "s3cret"}, creds)
}

func TestExtractBasicAuthSplitsOnFirstColon(t *testing.T) {
	creds, err := ExtractBasicAuth(basicHeader("alice:pa:ss:word"))
	require.NoError(t, err)
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, "pa:ss:word", creds.Password)
}

func TestExtractBasicAuthEmptySidesArePresent(t *testing.T) {
	creds, err := ExtractBasicAuth(basicHeader(":"))
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, creds)
}

func TestExtractBasicAuthRejects(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
	}{
		{"missing-header", http.Header{}},
		{"wrong-scheme", http.Header{"Authorization": {"Bearer abc"}}},
		{"scheme-is-case-sensitive", http.Header{"Authorization": {"basic " + base64.StdEncoding.EncodeToString([]byte("a:b"))}}},
		{"not-base64", http.Header{"Authorization": {"Basic not-valid-base64"}}},
		{"no-colon", basicHeader("justusername")},
		{"decoded-not-utf8", http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte{0xff, ':', 0xfe})}}},
		{"header-not-utf8", http.Header{"Authorization": {"Basic \xff\xfe"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				_, err := ExtractBasicAuth(tt.header)
				assert.ErrorIs(t, err, ErrInvalidHeaders)
			})
		})
	}
}
