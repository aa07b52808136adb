package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"mealplan-cli/internal/docs"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the source is dropped (no html.WithUnsafe).
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

func renderMarkdownHTML(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return template.HTML("")
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(b.String())
}

type docsVM struct {
	Topic  string
	Topics []string
	Body   template.HTML
}

// handleDocs serves the same topics as `mealplan docs`, rendered to HTML.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.PathValue("topic"))
	if topic == "" {
		topic = "board"
	}
	body, ok := docs.Get(topic)
	if !ok {
		http.Error(w, (&NotFoundError{Kind: "topic", ID: topic}).Error(), http.StatusNotFound)
		return
	}
	out, err := s.renderTemplate("docs", docsVM{Topic: topic, Topics: docs.Topics(), Body: renderMarkdownHTML(body)})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}
