package orgs

import (
	"context"
	"fmt"

	"github.com/gatehouse-io/gatehouse/pkg/observability"
)

// InviteDelivery produces a user-visible notification for an invite. The
// mechanism is deployment-specific; the default logs the accept URL.
type InviteDelivery interface {
	Deliver(ctx context.Context, invite *Invite, acceptURL string) error
}

// LogDelivery writes the accept URL to the application log
type LogDelivery struct {
	logger *observability.Logger
}

// NewLogDelivery creates a log-backed invite delivery
func NewLogDelivery(logger *observability.Logger) *LogDelivery {
	return &LogDelivery{logger: logger}
}

// Deliver logs the invite's accept URL
func (d *LogDelivery) Deliver(ctx context.Context, invite *Invite, acceptURL string) error {
	d.logger.WithField("email", invite.Email).
		WithField("invite_id", invite.ID).
		WithField("accept_url", acceptURL).
		Info("invite ready for delivery")
	return nil
}

// BuildAcceptURL joins the configured base URL with the invite token
func BuildAcceptURL(baseURL, token string) string {
	return fmt.Sprintf("%s/invites/accept?token=%s", baseURL, token)
}
