package core

import (
	"bytes"
	"net/mail"
	"text/template"

	"github.com/pkg/errors"
)

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated content
		Template     *template.Template
		TemplateData interface{}
		TextContent  string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent from BodyStr or from the template.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.Template == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := m.Template.Execute(&buf, m.TemplateData); err != nil {
		return errors.Wrapf(err, "executing template %q", m.Template.Name())
	}
	m.TextContent = buf.String()
	return nil
}

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To) > 0 || len(m.Cc) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.TextContent != ""
}

// ParseAddresses parses a list of RFC 5322 addresses, skipping invalid ones.
func ParseAddresses(addrs []string) []mail.Address {
	parsed := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		if addr, err := mail.ParseAddress(a); err == nil {
			parsed = append(parsed, *addr)
		}
	}
	return parsed
}
