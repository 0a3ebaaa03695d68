package autopublish

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// certificateEmailMarkdown is rendered with text/template and then converted to HTML
const certificateEmailMarkdown = `Hi {{md .VolunteerName}},

Thank you for volunteering with **{{md .ProjectTitle}}**{{if .OrganizationName}} ({{md .OrganizationName}}){{end}}.
Your certificate for **{{.Hours}} hours** is ready.

- **When:** {{md .EventRange}}
{{- if .Location}}
- **Where:** {{md .Location}}
{{- end}}

[View your certificate]({{.CertificateURL}})

Thanks for all you do!
`

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`<`, `&lt;`, `>`, `&gt;`, `#`, `\#`, `!`, `\!`, `|`, `\|`,
)

var certificateEmailTemplate = template.Must(
	template.New("certificate").
		Funcs(template.FuncMap{"md": markdownEscaper.Replace}).
		Parse(certificateEmailMarkdown),
)

// CertificateEmail is a rendered certificate-ready email
type CertificateEmail struct {
	Subject string
	HTML    string
}

type certificateEmailData struct {
	VolunteerName    string
	ProjectTitle     string
	OrganizationName string
	Location         string
	EventRange       string
	Hours            string
	CertificateURL   string
}

// EmailRenderer renders certificate-ready emails
type EmailRenderer struct {
	siteURL         string
	defaultLocation *time.Location
	markdown        goldmark.Markdown
}

// NewEmailRenderer creates a renderer linking certificates under siteURL.
// defaultLocation is used when a certificate has no usable time zone.
func NewEmailRenderer(siteURL string, defaultLocation *time.Location) *EmailRenderer {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &EmailRenderer{
		siteURL:         strings.TrimRight(siteURL, "/"),
		defaultLocation: defaultLocation,
		markdown:        goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps())),
	}
}

// CertificateURL returns the public link to a certificate
func (r *EmailRenderer) CertificateURL(certificateID string) string {
	return fmt.Sprintf("%s/certificates/%s", r.siteURL, certificateID)
}

// Render builds the subject and HTML body for a certificate
func (r *EmailRenderer) Render(cert db.Certificate) (CertificateEmail, error) {
	name := cert.VolunteerName
	if name == "" {
		name = "there"
	}

	data := certificateEmailData{
		VolunteerName:    name,
		ProjectTitle:     cert.ProjectTitle,
		OrganizationName: cert.OrganizationName,
		Location:         cert.ProjectLocation,
		EventRange:       FormatEventRange(cert.EventStart, cert.EventEnd, r.location(cert.TimeZone)),
		Hours:            FormatHours(cert.DurationMinutes),
		CertificateURL:   r.CertificateURL(cert.ID),
	}

	var src bytes.Buffer
	if err := certificateEmailTemplate.Execute(&src, data); err != nil {
		return CertificateEmail{}, fmt.Errorf("failed to render email template: %w", err)
	}

	var body bytes.Buffer
	if err := r.markdown.Convert(src.Bytes(), &body); err != nil {
		return CertificateEmail{}, fmt.Errorf("failed to convert email to html: %w", err)
	}

	return CertificateEmail{
		Subject: fmt.Sprintf("Your volunteer certificate for %s is ready", cert.ProjectTitle),
		HTML:    body.String(),
	}, nil
}

// location resolves a project's time zone, falling back to the default
func (r *EmailRenderer) location(tz string) *time.Location {
	if tz == "" {
		return r.defaultLocation
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return r.defaultLocation
	}
	return loc
}

// FormatEventRange formats a session's start and end in loc.
// Same-day sessions show the date once.
func FormatEventRange(start, end time.Time, loc *time.Location) string {
	start, end = start.In(loc), end.In(loc)

	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return fmt.Sprintf("%s, %s – %s %s",
			start.Format("Monday, January 2, 2006"),
			start.Format("3:04 PM"),
			end.Format("3:04 PM"),
			end.Format("MST"))
	}

	return fmt.Sprintf("%s – %s %s",
		start.Format("Mon Jan 2, 2006 3:04 PM"),
		end.Format("Mon Jan 2, 2006 3:04 PM"),
		end.Format("MST"))
}

// FormatHours formats minutes as hours with one decimal place
func FormatHours(minutes int) string {
	return fmt.Sprintf("%.1f", float64(minutes)/60)
}
