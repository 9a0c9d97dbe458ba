package notify

import (
	"context"
	"html"
	"sort"
	"strings"
)

// Recipient is a person who should hear about a captured lead.
type Recipient struct {
	Name  string
	Email string
}

// Notification describes a lead captured on a landing page.
type Notification struct {
	PageID     string
	PageTitle  string
	PageURL    string
	LeadID     string
	LeadData   map[string]string
	Recipients []Recipient
}

// Notifier delivers lead notifications.
type Notifier interface {
	LeadCaptured(ctx context.Context, notification Notification) error
}

func addresses(recipients []Recipient) []string {
	out := make([]string, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, recipient := range recipients {
		email := strings.ToLower(strings.TrimSpace(recipient.Email))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

func subject(n Notification) string {
	title := strings.TrimSpace(n.PageTitle)
	if title == "" {
		return "New lead captured"
	}
	return "New lead from " + title
}

// renderBody renders the lead fields as an HTML table. Every value is escaped.
func renderBody(n Notification) string {
	keys := make([]string, 0, len(n.LeadData))
	for key := range n.LeadData {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<p>A new lead was captured on ")
	if n.PageURL != "" {
		b.WriteString(`<a href="` + html.EscapeString(n.PageURL) + `">` + html.EscapeString(n.PageTitle) + "</a>")
	} else {
		b.WriteString(html.EscapeString(n.PageTitle))
	}
	b.WriteString(".</p>\n<table>\n")
	for _, key := range keys {
		b.WriteString("<tr><th>" + html.EscapeString(key) + "</th><td>" + html.EscapeString(n.LeadData[key]) + "</td></tr>\n")
	}
	b.WriteString("</table>\n")
	return b.String()
}
