package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const basicScheme = "Basic "

// Credentials live for a single authentication attempt. They are never
// stored or logged.
type Credentials struct {
	Username string
	Password string
}

// ExtractBasicAuth parses an RFC 7617 "Authorization: Basic" header. Every
// failure wraps ErrInvalidHeaders.
func ExtractBasicAuth(header http.Header) (Credentials, error) {
	values := header.Values("Authorization")
	if len(values) == 0 {
		return Credentials{}, invalidHeaders("the Authorization header is missing")
	}
	value := values[0]
	if !utf8.ValidString(value) {
		return Credentials{}, invalidHeaders("the Authorization header is not valid UTF-8")
	}

	encoded, ok := strings.CutPrefix(value, basicScheme)
	if !ok {
		return Credentials{}, invalidHeaders("the authorization scheme is not Basic")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: failed to base64-decode credentials: %v", ErrInvalidHeaders, err)
	}
	if !utf8.Valid(decoded) {
		return Credentials{}, invalidHeaders("the decoded credentials are not valid UTF-8")
	}

	// Only the first colon separates; passwords may contain colons.
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return Credentials{}, invalidHeaders("a username and password separated by ':' are required")
	}

	return Credentials{Username: username, Password: password}, nil
}

func invalidHeaders(reason string) error {
	return fmt.Errorf("%w: %w", ErrInvalidHeaders, errors.New(reason))
}
