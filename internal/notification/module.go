// Package notification sends operations emails in response to camp lifecycle
// events. Domain modules only publish events and never talk to email directly.
package notification

import (
	"context"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/internal/email"
	"summercamp_backend/internal/events"
	"summercamp_backend/platform/config"
	"summercamp_backend/platform/logger"
)

// Module is the notification module. It is not HTTP-facing.
type Module struct {
	sender    email.Sender
	recipient string
	log       *logger.Logger
}

// New creates a notification module. Without a recipient every event is ignored.
func New(sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return &Module{
		sender:    sender,
		recipient: cfg.GetOpsNotifyEmail(),
		log:       log,
	}
}

// RegisterHandlers subscribes to the camp events that warrant an email.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.CampStatusChanged{}.EventName(), m)
	bus.Subscribe(events.AttendanceProvisioned{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	if m.recipient == "" {
		return nil
	}
	switch e := event.(type) {
	case events.CampStatusChanged:
		return m.handleCampStatusChanged(ctx, e)
	case events.AttendanceProvisioned:
		return m.handleAttendanceProvisioned(ctx, e)
	default:
		return nil
	}
}

// Staff only hear about statuses that need a human decision.
func (m *Module) handleCampStatusChanged(ctx context.Context, e events.CampStatusChanged) error {
	if e.To != domain.StatusUnderEnrolled.String() {
		return nil
	}
	if err := m.sender.SendCampStatusEmail(ctx, m.recipient, e.CampID, e.From, e.To, e.Source); err != nil {
		m.log.Error("failed to send camp status email", "camp_id", e.CampID, "error", err)
		return err
	}
	m.log.Info("camp status email sent", "camp_id", e.CampID, "status", e.To)
	return nil
}

func (m *Module) handleAttendanceProvisioned(ctx context.Context, e events.AttendanceProvisioned) error {
	if e.PhotosFailed == 0 {
		return nil
	}
	report := email.ProvisioningReport{
		CampID:         e.CampID,
		RecordsCreated: e.RecordsCreated,
		PhotosCopied:   e.PhotosCopied,
		PhotosFailed:   e.PhotosFailed,
	}
	if err := m.sender.SendProvisioningReportEmail(ctx, m.recipient, report); err != nil {
		m.log.Error("failed to send provisioning report", "camp_id", e.CampID, "error", err)
		return err
	}
	return nil
}
