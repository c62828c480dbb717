// Package alert sends email notifications for abnormal controller events.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	mailgun "github.com/mailgun/mailgun-go/v3"
	"github.com/sirupsen/logrus"

	"github.com/ovanier/heatctl-go/internal/domain"
)

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// MailgunSender sends mail through the Mailgun API.
type MailgunSender struct {
	mg         mailgun.Mailgun
	sender     string
	recipients []string
}

// NewMailgunSender creates a sender for the given Mailgun domain.
func NewMailgunSender(domain, apiKey, sender string, recipients []string) *MailgunSender {
	return &MailgunSender{
		mg:         mailgun.NewMailgun(domain, apiKey),
		sender:     sender,
		recipients: recipients,
	}
}

func (m *MailgunSender) Send(ctx context.Context, subject, body string) error {
	message := m.mg.NewMessage(m.sender, subject, body, m.recipients...)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if id == "" {
		return fmt.Errorf("send mail: no message id: %s", resp)
	}
	return nil
}

// Notifier rate limits alerts per event kind so a persistent condition
// produces one email per interval instead of one per control cycle.
type Notifier struct {
	sender      Sender
	log         *logrus.Entry
	minInterval time.Duration
	now         func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewNotifier creates a notifier. A send failure is logged, never returned;
// alerting must not disturb the control loop.
func NewNotifier(sender Sender, log *logrus.Entry, minInterval time.Duration) *Notifier {
	return &Notifier{
		sender:      sender,
		log:         log,
		minInterval: minInterval,
		now:         time.Now,
		lastSent:    make(map[string]time.Time),
	}
}

// SafetyOverride reports a room that fell far enough below the target to
// force the heater on regardless of the average.
func (n *Notifier) SafetyOverride(ctx context.Context, coldest domain.Measurement, target float64) {
	subject := "heatctl: room below safety margin"
	body := fmt.Sprintf("%s reads %.1f°C while the target is %.1f°C. The heater was forced on.",
		coldest.Source, coldest.Value, target)
	n.notify(ctx, "safety_override", subject, body)
}

// StoreFailover reports that the primary log store became unreachable and
// writes are going to the local scratch store.
func (n *Notifier) StoreFailover(ctx context.Context) {
	subject := "heatctl: log store unreachable"
	body := "The primary log store is unreachable. Entries are being written to the local scratch store and will be merged back when the primary recovers."
	n.notify(ctx, "store_failover", subject, body)
}

func (n *Notifier) notify(ctx context.Context, kind, subject, body string) {
	if !n.shouldSend(kind) {
		return
	}
	if err := n.sender.Send(ctx, subject, body); err != nil {
		n.log.WithError(err).WithField("kind", kind).Error("failed to send alert")
		return
	}
	n.log.WithField("kind", kind).Info("alert sent")
}

func (n *Notifier) shouldSend(kind string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastSent[kind]; ok && now.Sub(last) < n.minInterval {
		return false
	}
	n.lastSent[kind] = now
	return true
}
