package Email

import (
	"context"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// Result is the tri-state send outcome. Callers log failures but never treat
// them as request-fatal.
type Result struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
	ID     string `json:"id,omitempty"`
}

const (
	ReasonFailed           = "failed"
	ReasonMissingRecipient = "missing_recipient"
)

type Client struct {
	http *resty.Client
	from string
}

var defaultClient *Client

func Setup() {
	defaultClient = NewClient(os.Getenv("RESEND_BASE_URL"), os.Getenv("RESEND_API_KEY"), os.Getenv("EMAIL_FROM"))
}

func NewClient(baseURL, apiKey, from string) *Client {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	// Retry handling is bespoke (409 counts as delivered), so resty's own
	// retry loop stays off.
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(0).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, from: from}
}

type sendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send dispatches one email through Resend. A 409 from the provider is its
// idempotent-conflict response and resolves as delivered. A 5xx is retried
// exactly once; whatever the retry returns is final.
func Send(ctx context.Context, to, subject, html string) Result {
	if defaultClient == nil {
		Setup()
	}
	return defaultClient.Send(ctx, to, subject, html)
}

func (c *Client) Send(ctx context.Context, to, subject, html string) Result {
	if to == "" {
		return Result{Sent: false, Reason: ReasonMissingRecipient}
	}

	result, retryable := c.attempt(ctx, to, subject, html)
	if retryable {
		result, _ = c.attempt(ctx, to, subject, html)
	}
	return result
}

func (c *Client) attempt(ctx context.Context, to, subject, html string) (Result, bool) {
	var body sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendPayload{From: c.from, To: []string{to}, Subject: subject, HTML: html}).
		SetResult(&body).
		Post("/emails")
	if err != nil {
		return Result{Sent: false, Reason: ReasonFailed}, false
	}

	status := resp.StatusCode()
	switch {
	case status < 300:
		return Result{Sent: true, ID: body.ID}, false
	case status == 409:
		// Idempotent duplicate: the provider already has this send.
		return Result{Sent: true}, false
	case status >= 500:
		return Result{Sent: false, Reason: ReasonFailed}, true
	}
	return Result{Sent: false, Reason: ReasonFailed}, false
}
