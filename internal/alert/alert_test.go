package alert

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovanier/heatctl-go/internal/domain"
)

type fakeSender struct {
	subjects []string
	bodies   []string
	err      error
}

func (f *fakeSender) Send(_ context.Context, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

func newNotifier(t *testing.T, sender Sender) (*Notifier, *time.Time) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	n := NewNotifier(sender, logrus.NewEntry(logger), time.Hour)
	now := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	return n, &now
}

func TestSafetyOverrideAlert(t *testing.T) {
	sender := &fakeSender{}
	n, _ := newNotifier(t, sender)

	n.SafetyOverride(context.Background(), domain.Measurement{Source: "cellar", Value: 14.2}, 18.0)

	require.Len(t, sender.subjects, 1)
	assert.Contains(t, sender.bodies[0], "cellar")
	assert.Contains(t, sender.bodies[0], "14.2")
	assert.Contains(t, sender.bodies[0], "18.0")
}

func TestAlertRateLimited(t *testing.T) {
	sender := &fakeSender{}
	n, now := newNotifier(t, sender)
	ctx := context.Background()
	coldest := domain.Measurement{Source: "cellar", Value: 14.2}

	n.SafetyOverride(ctx, coldest, 18.0)
	*now = now.Add(30 * time.Minute)
	n.SafetyOverride(ctx, coldest, 18.0)

	assert.Len(t, sender.subjects, 1, "second alert within the interval is dropped")

	*now = now.Add(31 * time.Minute)
	n.SafetyOverride(ctx, coldest, 18.0)
	assert.Len(t, sender.subjects, 2, "alert resumes once the interval elapsed")
}

func TestAlertKindsRateLimitedIndependently(t *testing.T) {
	sender := &fakeSender{}
	n, _ := newNotifier(t, sender)
	ctx := context.Background()

	n.SafetyOverride(ctx, domain.Measurement{Source: "cellar", Value: 14.2}, 18.0)
	n.StoreFailover(ctx)

	assert.Len(t, sender.subjects, 2)
}

func TestSendFailureDoesNotPanic(t *testing.T) {
	sender := &fakeSender{err: errors.New("mailgun down")}
	n, _ := newNotifier(t, sender)

	n.SafetyOverride(context.Background(), domain.Measurement{Source: "cellar", Value: 14.2}, 18.0)

	assert.Empty(t, sender.subjects)
}
