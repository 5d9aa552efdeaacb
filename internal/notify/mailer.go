package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// Mailer sends one message to one recipient. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, toEmail, subject, html string) error
}

// sendRequest matches the Brevo API v3 transactional email body.
type sendRequest struct {
	Sender  sender `json:"sender"`
	To      []to   `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"htmlContent"`
}

type sender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type to struct {
	Email string `json:"email"`
}

// BrevoClient sends emails via the Brevo API. An empty APIKey makes it a
// no-op, so local and test environments never send mail.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@unihaven.hk"
}

func (c *BrevoClient) Send(ctx context.Context, toEmail, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := sendRequest{
		Sender:  sender{Email: c.from(), Name: "UniHaven"},
		To:      []to{{Email: toEmail}},
		Subject: subject,
		HTML:    html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoAPI, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}
