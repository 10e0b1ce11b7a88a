package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title   string
	Heading string
}

type campStatusEmailData struct {
	baseEmailData
	CampID int64
	From   string
	To     string
	Source string
}

type provisioningReportEmailData struct {
	baseEmailData
	ProvisioningReport
}

func renderCampStatus(campID int64, from, to, source string) (string, error) {
	return renderEmailTemplate("camp_status.html", campStatusEmailData{
		baseEmailData: baseEmailData{Title: "Camp status changed", Heading: fmt.Sprintf("Camp %d is now %s", campID, to)},
		CampID:        campID,
		From:          from,
		To:            to,
		Source:        source,
	})
}

func renderProvisioningReport(report ProvisioningReport) (string, error) {
	return renderEmailTemplate("provisioning_report.html", provisioningReportEmailData{
		baseEmailData:      baseEmailData{Title: "Provisioning report", Heading: fmt.Sprintf("Camp %d provisioning", report.CampID)},
		ProvisioningReport: report,
	})
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
