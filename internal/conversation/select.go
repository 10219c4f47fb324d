package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"

	kit "petbot/internal/transport"
	"petbot/pkg/tgui"
)

// Mode selects the selector front-end.
type Mode int

const (
	// ModeInline shows callback buttons carrying "values-<i>" tokens.
	ModeInline Mode = iota
	// ModeReply shows a one-time reply keyboard; the typed label is the answer.
	ModeReply
)

const (
	CancelLabel   = "Cancelar"
	ChoosePrompt  = "Por favor, escolha uma opção"
	valueTokenPfx = "values-"
	defaultPerRow = 2
)

var ErrNoOptions = errors.New("selector: no values to choose from")

// SelectConfig describes one selector prompt.
type SelectConfig[T any] struct {
	Values  []T
	Label   func(T) string
	Message string
	Mode    Mode
	PerRow  int // controls per row; default 2
}

// Choice is the outcome of SelectOrCancel: either a selected value or cancelled.
type Choice[T any] struct {
	value     T
	cancelled bool
}

func Selected[T any](v T) Choice[T] { return Choice[T]{value: v} }

func Cancelled[T any]() Choice[T] { return Choice[T]{cancelled: true} }

// Value returns the selected value; ok is false when the selection was cancelled.
func (c Choice[T]) Value() (v T, ok bool) { return c.value, !c.cancelled }

func (c Choice[T]) IsCancelled() bool { return c.cancelled }

// Select prompts until the user picks one of cfg.Values. No cancel control is shown.
func Select[T any](ctx context.Context, s Session, cfg SelectConfig[T]) (T, error) {
	var zero T
	idx, err := run(ctx, s, cfg, false)
	if err != nil {
		return zero, err
	}
	return cfg.Values[idx], nil
}

// SelectOrCancel is Select with a trailing "Cancelar" control.
// Choosing it replies "Operação cancelada" and yields a cancelled Choice.
func SelectOrCancel[T any](ctx context.Context, s Session, cfg SelectConfig[T]) (Choice[T], error) {
	idx, err := run(ctx, s, cfg, true)
	if err != nil {
		return Choice[T]{}, err
	}
	if idx < 0 {
		_, err := s.Send(ctx, CancelledText, &kit.SendOptions{RemoveKeyboard: cfg.Mode == ModeReply})
		return Cancelled[T](), err
	}
	return Selected(cfg.Values[idx]), nil
}

// run returns the chosen index, or -1 for cancel.
func run[T any](ctx context.Context, s Session, cfg SelectConfig[T], addCancel bool) (int, error) {
	if len(cfg.Values) == 0 {
		return 0, ErrNoOptions
	}
	perRow := cfg.PerRow
	if perRow <= 0 {
		perRow = defaultPerRow
	}
	// Match against the label as shown; long labels are truncated on the button.
	buttons := make([]kit.Button, len(cfg.Values))
	labels := make([]string, len(cfg.Values))
	for i, v := range cfg.Values {
		buttons[i] = tgui.Btn(cfg.Label(v), valueToken(i))
		labels[i] = buttons[i].Text
	}

	kb := tgui.NewInline()
	if cfg.Mode == ModeReply {
		kb = tgui.NewReply(true)
	}
	tgui.Grid(kb, perRow, buttons)
	if addCancel {
		kb.Wrap(perRow, tgui.Btn(CancelLabel, CancelLabel))
	}
	if _, err := s.Send(ctx, cfg.Message, &kit.SendOptions{Keyboard: kb.Build()}); err != nil {
		return 0, err
	}

	for {
		up, err := s.Wait(ctx)
		if err != nil {
			return 0, err
		}
		if idx, ok := match(cfg.Mode, up, labels, addCancel); ok {
			if cfg.Mode == ModeInline {
				if err := s.AnswerCallback(ctx, up.Callback.ID); err != nil {
					return 0, err
				}
			}
			return idx, nil
		}
		if _, err := s.Send(ctx, ChoosePrompt, nil); err != nil {
			return 0, err
		}
	}
}

func match(mode Mode, up kit.Update, labels []string, addCancel bool) (int, bool) {
	switch mode {
	case ModeInline:
		if up.Callback == nil {
			return 0, false
		}
		data := up.Callback.Data
		if addCancel && data == CancelLabel {
			return -1, true
		}
		rest, ok := strings.CutPrefix(data, valueTokenPfx)
		if !ok {
			return 0, false
		}
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 || i >= len(labels) || strconv.Itoa(i) != rest {
			return 0, false
		}
		return i, true
	default:
		if up.Message == nil {
			return 0, false
		}
		text := strings.TrimSpace(up.Message.Text)
		if addCancel && text == CancelLabel {
			return -1, true
		}
		for i, l := range labels {
			if l == text {
				return i, true
			}
		}
		return 0, false
	}
}

func valueToken(i int) string { return valueTokenPfx + strconv.Itoa(i) }
