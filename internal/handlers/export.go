// File: internal/handlers/export.go
package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/middleware"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var exportPage = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

var roleHeadings = map[string]string{
	domain.RoleUser:      "You",
	domain.RoleAssistant: "Assistant",
	domain.RoleSystem:    "System",
}

// conversationMarkdown renders a transcript. Message bodies are kept as written,
// since assistant replies are usually markdown already.
func conversationMarkdown(conv *domain.Conversation, msgs []domain.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	fmt.Fprintf(&b, "_Model: %s_\n", conv.Model)
	for _, m := range msgs {
		heading, ok := roleHeadings[m.Role]
		if !ok {
			heading = m.Role
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", heading, strings.TrimSpace(m.Content))
	}
	return b.String()
}

// conversationHTML converts the transcript with goldmark. Raw HTML inside
// messages is dropped by the renderer.
func conversationHTML(conv *domain.Conversation, msgs []domain.Message) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(conversationMarkdown(conv, msgs)), &body); err != nil {
		return nil, err
	}
	var page bytes.Buffer
	err := exportPage.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{conv.Title, template.HTML(body.String())})
	return page.Bytes(), err
}

// ExportConversation downloads the transcript as markdown (default) or HTML.
func (h *ChatHandler) ExportConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "html" {
		writeError(w, "format must be markdown or html", http.StatusBadRequest)
		return
	}

	conv, msgs, err := h.ChatService.GetConversation(r.Context(), userID, id)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}

	filename := fmt.Sprintf("conversation-%d", conv.ID)
	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.md"`, filename))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(conversationMarkdown(conv, msgs)))
		return
	}

	page, err := conversationHTML(conv, msgs)
	if err != nil {
		h.logger.Error("export rendering failed", "conversation_id", conv.ID, "error", err)
		writeError(w, "Could not export conversation", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.html"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}
