// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dragon-chat/dragon/lib/schema"
)

// Raw HTML in the source is escaped, not passed through: goldmark's
// default renderer omits it unless WithUnsafe is set.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
)

// NewTextMessage builds m.text content. When body contains markdown
// that renders to more than a single plain paragraph, the rendered HTML
// is attached as formatted_body.
func NewTextMessage(body string) MessageContent {
	content := MessageContent{
		MsgType: schema.MsgTypeText,
		Body:    body,
	}
	if formatted, ok := renderMarkdown(body); ok {
		content.Format = schema.FormatHTML
		content.FormattedBody = formatted
	}
	return content
}

// renderMarkdown returns the HTML for body and whether it differs from
// plain text. A single paragraph with no inner tags is plain.
func renderMarkdown(body string) (string, bool) {
	var buffer bytes.Buffer
	if err := markdown.Convert([]byte(body), &buffer); err != nil {
		return "", false
	}
	rendered := strings.TrimSpace(buffer.String())
	inner, isParagraph := strings.CutPrefix(rendered, "<p>")
	if isParagraph {
		inner, isParagraph = strings.CutSuffix(inner, "</p>")
	}
	if isParagraph && !strings.Contains(inner, "<") {
		return "", false
	}
	return rendered, true
}
