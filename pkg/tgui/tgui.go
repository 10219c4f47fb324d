package tgui

import (
	"unicode/utf8"

	kit "petbot/internal/transport"
)

// Keyboard is a small builder for transport keyboards.
type Keyboard struct {
	kb kit.Keyboard
}

// NewInline starts an inline (callback button) keyboard.
func NewInline() *Keyboard {
	return &Keyboard{kb: kit.Keyboard{Kind: kit.KeyboardInline}}
}

// NewReply starts a reply keyboard. A one-time keyboard hides after the first tap.
func NewReply(oneTime bool) *Keyboard {
	return &Keyboard{kb: kit.Keyboard{Kind: kit.KeyboardReply, OneTime: oneTime}}
}

// Row appends a new row.
func (k *Keyboard) Row(btn ...kit.Button) *Keyboard {
	if len(btn) > 0 {
		k.kb.Rows = append(k.kb.Rows, btn)
	}
	return k
}

// Wrap appends btn to the last row, starting a new row once it holds perRow buttons.
func (k *Keyboard) Wrap(perRow int, btn kit.Button) *Keyboard {
	if perRow <= 0 {
		perRow = 1
	}
	n := len(k.kb.Rows)
	if n == 0 || len(k.kb.Rows[n-1]) >= perRow {
		k.kb.Rows = append(k.kb.Rows, []kit.Button{btn})
		return k
	}
	k.kb.Rows[n-1] = append(k.kb.Rows[n-1], btn)
	return k
}

// Build returns the keyboard. The builder must not be reused afterwards.
func (k *Keyboard) Build() *kit.Keyboard {
	kb := k.kb
	return &kb
}

// Btn creates a button. data is the callback token (inline only) and is sent as-is.
func Btn(text, data string) kit.Button {
	return kit.Button{Text: clip(text, MaxButtonTextRunes), Data: data}
}

// Grid lays buttons out perRow per row.
func Grid(k *Keyboard, perRow int, buttons []kit.Button) *Keyboard {
	for _, b := range buttons {
		k.Wrap(perRow, b)
	}
	return k
}

// clip shortens s to n runes, marking the cut with "…".
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
