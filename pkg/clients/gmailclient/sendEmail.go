package gmailclient

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

const EMAIL_INTERVAL = 3 * time.Second

// SendHTMLEmail sends an HTML email.
// Throttles requests to respect Gmail API rate limits.
func (c *Client) SendHTMLEmail(from, to, subject, htmlBody string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	// Check if we need to wait before sending
	if !c.lastSendTime.IsZero() {
		if elapsed := time.Since(c.lastSendTime); elapsed < c.interval {
			c.sleep(c.interval - elapsed)
		}
	}

	raw, err := buildHTMLMessage(from, to, subject, htmlBody)
	if err != nil {
		return err
	}

	if err := c.send(c.ctx, c.userID, &gmail.Message{Raw: raw}); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.lastSendTime = time.Now()
	c.logger.Debug("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// buildHTMLMessage returns the base64url-encoded RFC 5322 message
func buildHTMLMessage(from, to, subject, htmlBody string) (string, error) {
	for _, h := range []string{from, to, subject} {
		if strings.ContainsAny(h, "\r\n") {
			return "", fmt.Errorf("email header contains a line break")
		}
	}
	if to == "" {
		return "", fmt.Errorf("email recipient is empty")
	}

	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(wrap(base64.StdEncoding.EncodeToString([]byte(htmlBody)), 76))

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteString("\r\n")
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}
