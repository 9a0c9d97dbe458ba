package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const (
	fallbackPrimary   = "#2563eb"
	fallbackSecondary = "#2dd4da"
)

// Layout wraps body in the shared document shell styled with the page branding.
func Layout(title, canonicalURL string, brand BrandingView, footerNote string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}

		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.rawf(`<title>%s</title>`, title)
		if href := safeURL(canonicalURL); href != "" {
			h.rawf(`<link rel="canonical" href="%s">`, href)
		}
		h.raw(`<style>`)
		h.raw(styles(brand))
		h.raw(`</style></head>`)

		h.rawf(`<body class="background-%s">`, brand.BackgroundKind)
		switch brand.BackgroundKind {
		case "video":
			if src := safeURL(brand.BackgroundURL); src != "" {
				h.rawf(`<video class="background" autoplay muted loop playsinline src="%s"></video>`, src)
			}
		case "image":
			if src := safeURL(brand.BackgroundURL); src != "" {
				h.rawf(`<img class="background" alt="" src="%s">`, src)
			}
		}

		h.raw(`<header class="site-header">`)
		if src := safeURL(brand.LogoURL); src != "" {
			h.rawf(`<img class="logo" alt="logo" src="%s">`, src)
		}
		h.raw(`</header>`)

		h.component(ctx, body)

		if footerNote == "" {
			footerNote = DefaultFooterNote
		}
		h.raw(`<footer class="site-footer"><p>`)
		h.text(footerNote)
		h.raw(`</p></footer></body></html>`)

		return h.err
	})
}

// ErrorPage renders a branded error view.
func ErrorPage(data ErrorPageData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<main class="error">`)
		h.rawf(`<h1>%s</h1>`, data.StatusLabel)
		h.rawf(`<p class="message">%s</p>`, data.Message)
		h.raw(`</main>`)
		return h.err
	})
	return Layout(data.Title, "", data.Branding, "", body)
}

func styles(brand BrandingView) string {
	primary := cssColor(brand.PrimaryColor, fallbackPrimary)
	secondary := cssColor(brand.SecondaryColor, fallbackSecondary)
	radius := cssLength(brand.ButtonRadius, "8px")

	button := "background:var(--primary);"
	if brand.ButtonGradient {
		button = "background:linear-gradient(90deg,var(--primary),var(--secondary));"
	}

	return ":root{--primary:" + primary + ";--secondary:" + secondary + ";--button-radius:" + radius + "}" +
		"body{margin:0;font-family:system-ui,sans-serif;color:#111827}" +
		"body.background-gradient{background:linear-gradient(135deg,var(--primary),var(--secondary))}" +
		".background{position:fixed;inset:0;width:100%;height:100%;object-fit:cover;z-index:-1}" +
		".site-header,.site-footer{padding:1rem 2rem}.logo{max-height:48px}" +
		"main{max-width:720px;margin:2rem auto;padding:2rem;background:#fff;border-radius:12px}" +
		".headshot{width:96px;height:96px;border-radius:50%;object-fit:cover}" +
		".cta{display:inline-block;padding:.75rem 1.5rem;color:#fff;text-decoration:none;border-radius:var(--button-radius);" + button + "}" +
		".draft-banner{background:#fef3c7;padding:.5rem 1rem;border-radius:6px}"
}
