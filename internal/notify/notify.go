// Package notify delivers account-security messages. The production
// transport (SMTP, queue) is deployment-specific; LogMailer is the
// development fallback and writes the message to the log instead.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogMailer satisfies auth.Mailer by logging the delivery. The reset
// token itself is logged at debug level only.
type LogMailer struct {
	Log zerolog.Logger
}

// SendPasswordReset records that a reset token was issued for email.
func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.Log.Info().Str("email", email).Msg("password reset requested")
	m.Log.Debug().Str("email", email).Str("token", token).Msg("password reset token issued")
	return nil
}
