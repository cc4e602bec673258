// Package mail holds the outgoing mail adapters. Deliveries carry
// short-lived codes and links only, never account state.
package mail

import (
	"context"

	"github.com/activitymaster/clubauth/pkg/slogx"
)

// LogMailer writes each delivery to the structured log instead of
// sending it. Suitable for development and for deployments where a
// relay in front of the service picks messages out of the log stream.
type LogMailer struct{}

func (LogMailer) SendTwoFactorCode(ctx context.Context, to, code string) error {
	slogx.FromContext(ctx).Info("mail: two-factor code", "to", to, "code", code)
	return nil
}

func (LogMailer) SendVerificationLink(ctx context.Context, to, link string) error {
	slogx.FromContext(ctx).Info("mail: verification link", "to", to, "link", link)
	return nil
}

func (LogMailer) SendPasswordResetLink(ctx context.Context, to, link string) error {
	slogx.FromContext(ctx).Info("mail: password reset link", "to", to, "link", link)
	return nil
}
