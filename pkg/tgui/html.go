package tgui

import (
	"html"
	"strings"
)

// H is text already escaped for ParseMode "HTML".
type H string

func (h H) String() string { return string(h) }

// Esc escapes plain text.
func Esc(s string) H { return H(html.EscapeString(s)) }

func B(s string) H    { return tag("b", s) }
func Code(s string) H { return tag("code", s) }

func tag(name, s string) H {
	var b strings.Builder
	b.WriteString("<" + name + ">")
	b.WriteString(html.EscapeString(s))
	b.WriteString("</" + name + ">")
	return H(b.String())
}

// JoinH joins parts with sep. Blank parts are dropped.
func JoinH(sep string, parts ...H) H {
	var b strings.Builder
	for _, p := range parts {
		if strings.TrimSpace(string(p)) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(string(p))
	}
	return H(b.String())
}
