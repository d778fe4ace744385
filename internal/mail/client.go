// Package mail отправляет письма через HTTP API Resend: письма с
// готовым PDF-отчётом во вложении и служебные письма подтверждения
// почты и сброса пароля.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const sendURL = "https://api.resend.com/emails"

type Client struct {
	apiKey     string
	from       string
	httpClient *http.Client
}

func New(apiKey, from string) *Client {
	return &Client{
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type sendRequest struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []attachment `json:"attachments,omitempty"`
}

func (c *Client) send(ctx context.Context, req sendRequest) error {
	const op = "mail.send"

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(raw))
	}
	return nil
}

// SendReport отправляет письмо с PDF-отчётом во вложении.
func (c *Client) SendReport(ctx context.Context, to, propertyAddress, reportType string, pdf []byte) error {
	const op = "mail.SendReport"

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Your Condition Report is ready</h2>
<p>The %s condition report for <strong>%s</strong> is attached to this email as a PDF.</p>
<p>Keep this document for your records. It includes photo documentation and an itemized condition checklist for every room.</p>
<p style="color: #888; font-size: 12px;">This report was generated automatically from the photos you provided.</p>
</div>`, reportType, propertyAddress)

	err := c.send(ctx, sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: fmt.Sprintf("Condition Report: %s", propertyAddress),
		HTML:    html,
		Attachments: []attachment{{
			Filename: "condition-report.pdf",
			Content:  base64.StdEncoding.EncodeToString(pdf),
		}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendVerification отправляет ссылку подтверждения почты.
func (c *Client) SendVerification(ctx context.Context, to, verifyURL string) error {
	const op = "mail.SendVerification"

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Verify your email</h2>
<p>Click the link below to confirm this email address for your account:</p>
<p><a href="%s">%s</a></p>
<p style="color: #888; font-size: 12px;">The link is valid for 24 hours. If you did not create an account, ignore this email.</p>
</div>`, verifyURL, verifyURL)

	err := c.send(ctx, sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: "Verify your email",
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendPasswordReset отправляет ссылку сброса пароля.
func (c *Client) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	const op = "mail.SendPasswordReset"

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Reset your password</h2>
<p>Click the link below to choose a new password:</p>
<p><a href="%s">%s</a></p>
<p style="color: #888; font-size: 12px;">The link is valid for 1 hour. If you did not request a reset, ignore this email.</p>
</div>`, resetURL, resetURL)

	err := c.send(ctx, sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: "Reset your password",
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
