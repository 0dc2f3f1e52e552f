package chat

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/matzehuels/postcard/pkg/svg"
)

// Section markers in model replies.
const (
	CommentMarker = "【点评】"
	SVGMarker     = "【SVG】"
)

var (
	replyLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "CommentTag", Pattern: CommentMarker},
		{Name: "SVGTag", Pattern: SVGMarker},
		{Name: "Text", Pattern: `[^【]+|【`},
	})

	replyParser = participle.MustBuild[replyDoc](
		participle.Lexer(replyLexer),
	)
)

// replyDoc is free text followed by tagged sections.
type replyDoc struct {
	Preamble []string   `parser:"@Text*"`
	Sections []*section `parser:"@@*"`
}

type section struct {
	Tag  string   `parser:"@(CommentTag | SVGTag)"`
	Body []string `parser:"@Text*"`
}

func (s *section) text() string {
	return strings.TrimSpace(strings.Join(s.Body, ""))
}

// ParseReply splits a model answer into its comment and SVG markup.
//
// The comment is the body of the first 【点评】 section, or the untagged
// text when no such section exists. The SVG is the first <svg>...</svg>
// element in the 【SVG】 section, or anywhere in the reply when untagged.
// Text the grammar cannot place is kept as the comment.
func ParseReply(text string) *Reply {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	reply := &Reply{Raw: text}
	if strings.TrimSpace(text) == "" {
		return reply
	}

	doc, err := replyParser.ParseString("", text)
	if err != nil {
		reply.Comment = stripSVG(text)
		reply.SVG, _ = svg.Extract(text)
		return reply
	}

	var comment, sketch *section
	for _, s := range doc.Sections {
		switch {
		case s.Tag == CommentMarker && comment == nil:
			comment = s
		case s.Tag == SVGMarker && sketch == nil:
			sketch = s
		}
	}

	if comment != nil {
		reply.Comment = stripSVG(comment.text())
	} else {
		reply.Comment = stripSVG(strings.Join(doc.Preamble, ""))
	}
	if sketch != nil {
		reply.SVG, _ = svg.Extract(sketch.text())
	}
	if reply.SVG == "" {
		reply.SVG, _ = svg.Extract(text)
	}
	return reply
}

// stripSVG removes any SVG element and surrounding code fences from s.
func stripSVG(s string) string {
	if markup, ok := svg.Extract(s); ok {
		s = strings.Replace(s, markup, "", 1)
	}
	s = strings.ReplaceAll(s, "```svg", "")
	s = strings.ReplaceAll(s, "```xml", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
