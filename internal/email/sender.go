// Package email renders and delivers operational emails about camps.
package email

import (
	"context"

	"summercamp_backend/platform/config"
)

// Sender delivers camp operations emails.
type Sender interface {
	SendCampStatusEmail(ctx context.Context, toEmail string, campID int64, from, to, source string) error
	SendProvisioningReportEmail(ctx context.Context, toEmail string, report ProvisioningReport) error
}

// ProvisioningReport is the content of a provisioning report email.
type ProvisioningReport struct {
	CampID         int64
	RecordsCreated int
	PhotosCopied   int
	PhotosFailed   int
}

// NoopSender drops every email. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendCampStatusEmail(context.Context, string, int64, string, string, string) error {
	return nil
}

func (NoopSender) SendProvisioningReportEmail(context.Context, string, ProvisioningReport) error {
	return nil
}

// NewSender returns the SMTP sender, or NoopSender when no relay is configured.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(cfg)
}
