package templates

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/a-h/templ"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// RawHTML returns a templ component that writes the provided HTML without escaping.
func RawHTML(html string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := io.WriteString(w, html)
		return err
	})
}

// htmlWriter keeps the first write error so components can emit markup without checking each call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// rawf formats with every argument escaped.
func (h *htmlWriter) rawf(format string, args ...string) {
	escaped := make([]any, len(args))
	for i, arg := range args {
		escaped[i] = templ.EscapeString(arg)
	}
	h.raw(fmt.Sprintf(format, escaped...))
}

func (h *htmlWriter) component(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// safeURL drops URLs templ considers unsafe, such as javascript: links.
func safeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if url := templ.URL(raw); url != templ.FailedSanitizationURL {
		return string(url)
	}
	return ""
}

func cssColor(value, fallback string) string {
	if hexColorPattern.MatchString(strings.TrimSpace(value)) {
		return strings.TrimSpace(value)
	}
	return fallback
}

func cssLength(value, fallback string) string {
	switch value {
	case "0", "8px", "9999px":
		return value
	default:
		return fallback
	}
}
