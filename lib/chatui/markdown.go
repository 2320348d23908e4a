// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dragon-chat/dragon/lib/tui"
)

var bodyParser = sync.OnceValue(func() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
})

// bodyStyles forces ANSI256 output. Message bodies are only ever shown
// inside the bubbletea program, and auto-detection would strip color
// when there is no TTY (tests, piped logs).
var bodyStyles = sync.OnceValue(func() *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)
	return renderer
})

// renderBody renders a message body as styled terminal text wrapped to
// width. Chat messages are compact: blocks are separated by a single
// newline, never a blank line.
func renderBody(body string, theme tui.Theme, width int, foreground lipgloss.Color) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	source := []byte(body)
	document := bodyParser().Parser().Parse(text.NewReader(source))

	renderer := &bodyRenderer{
		source:     source,
		theme:      theme,
		width:      max(width, 10),
		foreground: foreground,
	}
	ast.Walk(document, renderer.walk)
	return strings.Join(renderer.lines, "\n")
}

type listLevel struct {
	ordered bool
	counter int
}

// bodyRenderer walks the goldmark AST directly: inline content is
// collected per block and wrapped as a unit when the block closes.
type bodyRenderer struct {
	source     []byte
	theme      tui.Theme
	width      int
	foreground lipgloss.Color

	lines  []string
	inline strings.Builder

	bold, italic, strike int
	quoteDepth           int
	lists                []listLevel
	bullet               string
	cells                []string
}

func (renderer *bodyRenderer) style() lipgloss.Style {
	return bodyStyles().NewStyle()
}

// indent is the prefix for continuation lines at the current depth.
func (renderer *bodyRenderer) indent() string {
	return strings.Repeat("│ ", renderer.quoteDepth) + strings.Repeat("  ", len(renderer.lists))
}

// emit wraps content and appends it, the first line taking the pending
// list bullet in place of the indent.
func (renderer *bodyRenderer) emit(content string) {
	if content == "" {
		return
	}
	indent := renderer.indent()
	first := indent
	if renderer.bullet != "" {
		first = renderer.bullet
		renderer.bullet = ""
	}
	wrapped := ansi.Wrap(content, max(renderer.width-ansi.StringWidth(indent), 10), " ,.;-+|/")
	quote := renderer.style().Foreground(renderer.theme.FaintText)
	for index, line := range strings.Split(wrapped, "\n") {
		prefix := indent
		if index == 0 {
			prefix = first
		}
		if renderer.quoteDepth > 0 {
			prefix = quote.Render(prefix)
		}
		renderer.lines = append(renderer.lines, prefix+line)
	}
}

func (renderer *bodyRenderer) flush() {
	content := renderer.inline.String()
	renderer.inline.Reset()
	renderer.emit(content)
}

func (renderer *bodyRenderer) styled(content string) string {
	style := renderer.style().Foreground(renderer.foreground)
	if renderer.bold > 0 {
		style = style.Bold(true)
	}
	if renderer.italic > 0 {
		style = style.Italic(true)
	}
	if renderer.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

func (renderer *bodyRenderer) plainText(node ast.Node) string {
	var builder strings.Builder
	ast.Walk(node, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch child := child.(type) {
		case *ast.Text:
			builder.Write(child.Segment.Value(renderer.source))
			if child.SoftLineBreak() {
				builder.WriteByte(' ')
			}
		case *ast.String:
			builder.Write(child.Value)
		}
		return ast.WalkContinue, nil
	})
	return builder.String()
}

func (renderer *bodyRenderer) codeLines(lines *text.Segments) string {
	var builder strings.Builder
	for index := range lines.Len() {
		segment := lines.At(index)
		builder.Write(segment.Value(renderer.source))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func (renderer *bodyRenderer) emitCode(code, language string) {
	highlighted := renderer.style().Foreground(renderer.theme.FaintText).Render(code)
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err == nil {
			highlighted = strings.TrimRight(buffer.String(), "\n")
		}
	}
	indent := renderer.indent() + "  "
	for _, line := range strings.Split(highlighted, "\n") {
		renderer.lines = append(renderer.lines, indent+line)
	}
}

func (renderer *bodyRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if !entering {
			renderer.flush()
		}

	case ast.KindHeading:
		if entering {
			renderer.bold++
		} else {
			renderer.bold--
			renderer.flush()
		}

	case ast.KindFencedCodeBlock:
		if entering {
			block := node.(*ast.FencedCodeBlock)
			renderer.emitCode(renderer.codeLines(block.Lines()), string(block.Language(renderer.source)))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindCodeBlock:
		if entering {
			renderer.emitCode(renderer.codeLines(node.Lines()), "")
		}
		return ast.WalkSkipChildren, nil

	case ast.KindHTMLBlock:
		if entering {
			renderer.inline.WriteString(renderer.styled(renderer.codeLines(node.Lines())))
			renderer.flush()
		}
		return ast.WalkSkipChildren, nil

	case ast.KindBlockquote:
		if entering {
			renderer.quoteDepth++
		} else {
			renderer.quoteDepth--
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			renderer.lists = append(renderer.lists, listLevel{ordered: list.IsOrdered(), counter: list.Start})
		} else {
			renderer.lists = renderer.lists[:len(renderer.lists)-1]
		}

	case ast.KindListItem:
		if entering {
			level := &renderer.lists[len(renderer.lists)-1]
			marker := "• "
			if level.ordered {
				marker = strconv.Itoa(level.counter) + ". "
				level.counter++
			}
			outer := strings.Repeat("│ ", renderer.quoteDepth) + strings.Repeat("  ", len(renderer.lists)-1)
			renderer.bullet = outer + renderer.style().Foreground(renderer.theme.AccentColor).Render(marker)
		}

	case ast.KindThematicBreak:
		if entering {
			rule := strings.Repeat("─", max(renderer.width-ansi.StringWidth(renderer.indent()), 1))
			renderer.lines = append(renderer.lines, renderer.indent()+renderer.style().Foreground(renderer.theme.BorderColor).Render(rule))
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			renderer.inline.WriteString(renderer.styled(string(textNode.Segment.Value(renderer.source))))
			switch {
			case textNode.HardLineBreak():
				renderer.inline.WriteString("\n")
			case textNode.SoftLineBreak():
				renderer.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			renderer.inline.WriteString(renderer.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		counter := &renderer.italic
		if node.(*ast.Emphasis).Level >= 2 {
			counter = &renderer.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case extast.KindStrikethrough:
		if entering {
			renderer.strike++
		} else {
			renderer.strike--
		}

	case ast.KindCodeSpan:
		if entering {
			code := renderer.style().
				Foreground(renderer.theme.NormalText).
				Background(renderer.theme.TooltipBackground)
			renderer.inline.WriteString(code.Render(renderer.plainText(node)))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			label := renderer.plainText(node)
			destination := string(link.Destination)
			style := renderer.style().Foreground(renderer.theme.LinkForeground).Underline(true)
			renderer.inline.WriteString(style.Render(label))
			if destination != "" && destination != label {
				renderer.inline.WriteString(renderer.style().Foreground(renderer.theme.FaintText).Render(" (" + destination + ")"))
			}
		}
		return ast.WalkSkipChildren, nil

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(renderer.source))
			renderer.inline.WriteString(renderer.style().Foreground(renderer.theme.LinkForeground).Underline(true).Render(url))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			label := "[image: " + renderer.plainText(node) + "] " + string(image.Destination)
			renderer.inline.WriteString(renderer.style().Foreground(renderer.theme.FaintText).Render(label))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindRawHTML:
		if entering {
			segments := node.(*ast.RawHTML).Segments
			renderer.inline.WriteString(renderer.styled(renderer.codeLines(segments)))
		}
		return ast.WalkSkipChildren, nil

	case extast.KindTaskCheckBox:
		if entering {
			box := "[ ] "
			if node.(*extast.TaskCheckBox).IsChecked {
				box = "[x] "
			}
			renderer.inline.WriteString(renderer.styled(box))
		}

	case extast.KindTableCell:
		if entering {
			renderer.cells = append(renderer.cells, renderer.plainText(node))
		}
		return ast.WalkSkipChildren, nil

	case extast.KindTableHeader, extast.KindTableRow:
		if !entering {
			separator := renderer.style().Foreground(renderer.theme.BorderColor).Render(" │ ")
			for index, cell := range renderer.cells {
				if index > 0 {
					renderer.inline.WriteString(separator)
				}
				if node.Kind() == extast.KindTableHeader {
					cell = renderer.style().Bold(true).Foreground(renderer.foreground).Render(cell)
				} else {
					cell = renderer.styled(cell)
				}
				renderer.inline.WriteString(cell)
			}
			renderer.cells = nil
			renderer.flush()
		}
	}
	return ast.WalkContinue, nil
}
