package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// LandingPage renders a generated page inside the branded layout.
func LandingPage(data LandingPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}

		h.rawf(`<main class="landing landing-%s" data-page-id="%s" data-template="%s">`, data.TemplateType, data.PageID, data.TemplateType)
		if data.Draft {
			h.raw(`<p class="draft-banner">Draft preview. This page is not public yet.</p>`)
		}
		h.rawf(`<p class="template-label">%s</p>`, data.TemplateLabel)
		h.rawf(`<h1>%s</h1>`, data.Title)
		if data.CompanyName != "" && data.CompanyName != data.Title {
			h.rawf(`<p class="company">%s</p>`, data.CompanyName)
		}

		if data.Property != nil {
			writeProperty(ctx, h, data.Property)
		}

		h.raw(`<section class="contacts">`)
		writeContact(h, "owner", data.Owner)
		if data.Partner != nil {
			writeContact(h, "partner", *data.Partner)
		}
		h.raw(`</section>`)

		if len(data.Team) > 0 {
			h.raw(`<section class="team"><h2>Your loan officers</h2>`)
			for _, member := range data.Team {
				writeContact(h, "team-member", member)
			}
			h.raw(`</section>`)
		}

		if href := safeURL(contactHref(data.Owner)); href != "" {
			h.rawf(`<a class="cta" href="%s">Get in touch</a>`, href)
		}
		h.raw(`</main>`)

		return h.err
	})

	return Layout(data.Title, data.CanonicalURL, data.Branding, data.FooterNote, body)
}

func writeProperty(ctx context.Context, h *htmlWriter, property *PropertyView) {
	h.raw(`<section class="property">`)
	h.rawf(`<h2 class="address">%s</h2>`, property.Address)
	if property.PriceLabel != "" {
		h.rawf(`<p class="price">%s</p>`, property.PriceLabel)
	}
	if len(property.Facts) > 0 {
		h.raw(`<ul class="facts">`)
		for _, fact := range property.Facts {
			h.rawf(`<li>%s</li>`, fact)
		}
		h.raw(`</ul>`)
	}
	if property.DescriptionHTML != "" {
		h.raw(`<div class="description">`)
		h.component(ctx, RawHTML(property.DescriptionHTML))
		h.raw(`</div>`)
	}
	h.raw(`</section>`)
}

func writeContact(h *htmlWriter, role string, contact ContactView) {
	if contact.Name == "" {
		return
	}
	h.rawf(`<div class="contact %s">`, role)
	if src := safeURL(contact.HeadshotURL); src != "" {
		h.rawf(`<img class="headshot" alt="%s" src="%s">`, contact.Name, src)
	}
	h.rawf(`<p class="name">%s</p>`, contact.Name)
	if contact.JobTitle != "" {
		h.rawf(`<p class="job-title">%s</p>`, contact.JobTitle)
	}
	if contact.Phone != "" {
		h.rawf(`<a class="phone" href="%s">%s</a>`, safeURL("tel:"+contact.Phone), contact.Phone)
	}
	if contact.Email != "" {
		h.rawf(`<a class="email" href="%s">%s</a>`, safeURL("mailto:"+contact.Email), contact.Email)
	}
	h.raw(`</div>`)
}

func contactHref(contact ContactView) string {
	switch {
	case contact.Email != "":
		return "mailto:" + contact.Email
	case contact.Phone != "":
		return "tel:" + contact.Phone
	default:
		return ""
	}
}
