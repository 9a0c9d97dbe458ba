package templates

import (
	"bytes"

	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the source is dropped because WithUnsafe is not set.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Markdown converts a property description to HTML.
func Markdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", eris.Wrap(err, "rendering markdown")
	}
	return buf.String(), nil
}
