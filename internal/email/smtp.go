package email

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"summercamp_backend/platform/config"
)

const smtpTimeout = 15 * time.Second

// SMTPSender delivers HTML mail through one configured SMTP relay.
type SMTPSender struct {
	client   *gomail.Client
	from     string
	fromName string
}

// NewSMTPSender prepares the relay client. No connection is opened until the
// first message is sent.
func NewSMTPSender(cfg config.EmailConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithPort(cfg.GetSMTPPort()),
		gomail.WithTimeout(smtpTimeout),
	}
	if user := cfg.GetSMTPUsername(); user != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(user),
			gomail.WithPassword(cfg.GetSMTPPassword()),
		)
	}
	client, err := gomail.NewClient(cfg.GetSMTPHost(), opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.GetEmailFromAddress(), fromName: cfg.GetEmailFromName()}, nil
}

func (s *SMTPSender) SendCampStatusEmail(ctx context.Context, toEmail string, campID int64, from, to, source string) error {
	body, err := renderCampStatus(campID, from, to, source)
	if err != nil {
		return err
	}
	return s.deliver(ctx, toEmail, fmt.Sprintf(subjectCampStatusFmt, campID, to), body)
}

func (s *SMTPSender) SendProvisioningReportEmail(ctx context.Context, toEmail string, report ProvisioningReport) error {
	body, err := renderProvisioningReport(report)
	if err != nil {
		return err
	}
	return s.deliver(ctx, toEmail, fmt.Sprintf(subjectProvisioningReportFmt, report.CampID), body)
}

func (s *SMTPSender) deliver(ctx context.Context, to, subject, html string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return fmt.Errorf("smtp from %q: %w", s.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("smtp to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
