package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Dispatcher fires notifications asynchronously. Delivery is best-effort:
// failures are logged and never propagated to the operation that triggered
// them, and a committed reservation is never reverted over a mail error.
type Dispatcher struct {
	Mailer Mailer

	// Timeout bounds each send attempt; defaults to 15s.
	Timeout time.Duration
}

func (d *Dispatcher) timeout() time.Duration {
	if d.Timeout == 0 {
		return 15 * time.Second
	}
	return d.Timeout
}

func (d *Dispatcher) dispatch(toEmail, subject, body string) {
	if d == nil || d.Mailer == nil {
		return
	}
	msgID := uuid.New().String()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout())
		defer cancel()
		if err := d.Mailer.Send(ctx, toEmail, subject, body); err != nil {
			log.Error().Err(err).Str("message_id", msgID).Str("to", toEmail).Str("subject", subject).Msg("notification dispatch failed")
			return
		}
		log.Info().Str("message_id", msgID).Str("to", toEmail).Str("subject", subject).Msg("notification sent")
	}()
}

// requesterEmail derives the student's mailbox from the requester identifier.
func requesterEmail(userID string) string {
	return userID + "@example.com"
}

// ReservationConfirmed notifies the requester and the tenant specialist.
func (d *Dispatcher) ReservationConfirmed(userID, listingTitle, specialistEmail string) {
	d.dispatch(
		requesterEmail(userID),
		"Reservation Confirmed - UniHaven",
		fmt.Sprintf("<p>Hi %s,</p><p>Your reservation for '%s' is confirmed.</p><p>Thank you!</p>",
			html.EscapeString(userID), html.EscapeString(listingTitle)),
	)
	if specialistEmail != "" {
		d.dispatch(
			specialistEmail,
			"[UniHaven] New Reservation Alert",
			fmt.Sprintf("<p>Student %s has reserved the accommodation: '%s'.</p><p>Please follow up for contract processing.</p>",
				html.EscapeString(userID), html.EscapeString(listingTitle)),
		)
	}
}

// ReservationCancelled notifies the requester and the tenant specialist.
func (d *Dispatcher) ReservationCancelled(userID, listingTitle, specialistEmail string) {
	d.dispatch(
		requesterEmail(userID),
		"Reservation Cancelled - UniHaven",
		fmt.Sprintf("<p>Hi %s,</p><p>Your reservation for '%s' has been cancelled.</p>",
			html.EscapeString(userID), html.EscapeString(listingTitle)),
	)
	if specialistEmail != "" {
		d.dispatch(
			specialistEmail,
			"[UniHaven] Reservation Cancelled",
			fmt.Sprintf("<p>Student %s has cancelled their reservation for '%s'.</p><p>No further action is required.</p>",
				html.EscapeString(userID), html.EscapeString(listingTitle)),
		)
	}
}
