// Package logsender writes certificate emails to the log instead of sending them.
// It backs the "log" email provider used in development and staging.
package logsender

import (
	"sync"

	"go.uber.org/zap"
)

// Sender logs every email it is asked to send
type Sender struct {
	logger *zap.Logger
	mu     sync.Mutex
	count  int
}

func New(logger *zap.Logger) *Sender {
	return &Sender{logger: logger}
}

// SendHTMLEmail logs the email and always succeeds
func (s *Sender) SendHTMLEmail(from, to, subject, htmlBody string) error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()

	s.logger.Info("Email (not sent)",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)))
	s.logger.Debug("Email body", zap.String("to", to), zap.String("html", htmlBody))
	return nil
}

// Count returns how many emails have been logged
func (s *Sender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
