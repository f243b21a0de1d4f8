package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

const (
	defaultAlertTimeout = 10 * time.Second
	maxQueryExcerpt     = 280
)

// EmergencyAlert describes a query that matched emergency keywords.
type EmergencyAlert struct {
	SessionID string
	UserID    string
	Query     string
	Terms     []string
	At        time.Time
}

// AlertObserver records the outcome of each alert.
type AlertObserver interface {
	ObserveAlert(status string)
}

// Alerter emails clinic staff when the assistant sees an emergency query.
type Alerter struct {
	email    EmailSender
	to       string
	timeout  time.Duration
	logger   *logging.Logger
	observer AlertObserver
	wg       sync.WaitGroup
}

// NewAlerter creates an alerter. With no sender or recipient, alerts are only logged.
func NewAlerter(email EmailSender, to string, observer AlertObserver, logger *logging.Logger) *Alerter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Alerter{
		email:    email,
		to:       strings.TrimSpace(to),
		timeout:  defaultAlertTimeout,
		logger:   logger,
		observer: observer,
	}
}

// Enabled reports whether alerts are delivered by email.
func (a *Alerter) Enabled() bool {
	return a != nil && a.email != nil && a.to != ""
}

// Notify sends the alert synchronously.
func (a *Alerter) Notify(ctx context.Context, alert EmergencyAlert) error {
	if !a.Enabled() {
		if a != nil {
			a.logger.Warn("emergency alert not delivered: email not configured", "session_id", alert.SessionID, "terms", alert.Terms)
			a.observe("skipped")
		}
		return nil
	}

	err := a.email.Send(ctx, EmailMessage{
		To:      a.to,
		Subject: fmt.Sprintf("Emergency keywords in assistant chat: %s", strings.Join(alert.Terms, ", ")),
		Body:    formatAlertBody(alert),
	})
	if err != nil {
		a.observe("failed")
		return fmt.Errorf("notify: emergency alert: %w", err)
	}
	a.observe("sent")
	return nil
}

// NotifyAsync sends the alert on a detached goroutine with its own timeout so
// the caller's request is never delayed by the email provider.
func (a *Alerter) NotifyAsync(alert EmergencyAlert) {
	if a == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.Notify(ctx, alert); err != nil {
			a.logger.Error("emergency alert failed", "error", err, "session_id", alert.SessionID)
		}
	}()
}

// Wait blocks until in-flight async alerts finish.
func (a *Alerter) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}

func (a *Alerter) observe(status string) {
	if a.observer != nil {
		a.observer.ObserveAlert(status)
	}
}

func formatAlertBody(alert EmergencyAlert) string {
	at := alert.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	user := alert.UserID
	if user == "" {
		user = "anonymous"
	}

	var b strings.Builder
	b.WriteString("The medical assistant received a message containing emergency keywords.\n\n")
	fmt.Fprintf(&b, "Session: %s\n", alert.SessionID)
	fmt.Fprintf(&b, "User: %s\n", user)
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(alert.Terms, ", "))
	fmt.Fprintf(&b, "Time: %s\n\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Message excerpt:\n%s\n", excerpt(alert.Query, maxQueryExcerpt))
	b.WriteString("\nThe user was advised to seek immediate in-person care.")
	return b.String()
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
