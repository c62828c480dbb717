// Package actuator switches the heater through the gateway while debouncing
// redundant commands.
package actuator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Gateway is the transport the actuator sends commands through.
type Gateway interface {
	SetDevice(ctx context.Context, device string, on bool) error
}

// Actuator debounces heater commands. A command is sent only when the
// desired state differs from the last successfully sent one, or when the
// resend interval has elapsed since the last send (keep-alive re-assertion).
// A failed send never updates the debounce state, so the next call retries
// even with an unchanged desired value.
//
// Not safe for concurrent use; the control loop is the only caller.
type Actuator struct {
	gateway        Gateway
	device         string
	resendInterval time.Duration
	log            *logrus.Entry

	now        func() time.Time
	lastState  *bool
	lastSentAt time.Time
}

// New creates an actuator for the given heater device.
func New(gateway Gateway, device string, resendInterval time.Duration, log *logrus.Entry) *Actuator {
	return &Actuator{
		gateway:        gateway,
		device:         device,
		resendInterval: resendInterval,
		log:            log,
		now:            time.Now,
	}
}

// Apply ensures the heater is in the desired state. When the command is
// suppressed it returns nil without contacting the gateway.
func (a *Actuator) Apply(ctx context.Context, desired bool) error {
	if a.lastState != nil && *a.lastState == desired && a.now().Sub(a.lastSentAt) < a.resendInterval {
		return nil
	}

	if err := a.gateway.SetDevice(ctx, a.device, desired); err != nil {
		return err
	}

	state := desired
	a.lastState = &state
	a.lastSentAt = a.now()
	a.log.WithFields(logrus.Fields{"device": a.device, "on": desired}).Info("heater command sent")
	return nil
}
