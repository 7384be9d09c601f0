// Package template renders the password reset email.
//
// Supported variables:
//
//	{{account.username}}, {{reset.link}}, {{reset.expires_in}}
package template

import (
	"strings"
	"time"
)

const DefaultResetSubject = "Reset your Hermod password"

const DefaultResetBody = `Hello {{account.username}},

Use the link below to choose a new password. It expires in {{reset.expires_in}}.

{{reset.link}}

If you did not ask for a reset you can ignore this email.
`

type ResetData struct {
	Username  string
	Link      string
	ExpiresIn time.Duration
}

// RenderBody replaces the variables in body. An empty body renders
// DefaultResetBody. Unknown placeholders are left as they are.
func RenderBody(body string, data ResetData) string {
	if strings.TrimSpace(body) == "" {
		body = DefaultResetBody
	}
	return strings.NewReplacer(
		"{{account.username}}", data.Username,
		"{{reset.link}}", data.Link,
		"{{reset.expires_in}}", data.ExpiresIn.String(),
	).Replace(body)
}
