package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// ChatID returns the chat the update belongs to.
func (u Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.ChatID
	case u.Callback != nil:
		return u.Callback.ChatID
	}
	return 0
}

// FromID returns the sender of the update.
func (u Update) FromID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.FromID
	case u.Callback != nil:
		return u.Callback.FromID
	}
	return 0
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	Unix         int64 // message date, seconds
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type KeyboardKind int

const (
	// KeyboardInline attaches callback buttons to the message.
	KeyboardInline KeyboardKind = iota
	// KeyboardReply replaces the client keyboard; tapping a button sends its text.
	KeyboardReply
)

type Button struct {
	Text string
	Data string // callback token; inline keyboards only
}

// Keyboard is an adapter-neutral control set attached to an outgoing message.
type Keyboard struct {
	Kind    KeyboardKind
	Rows    [][]Button
	OneTime bool
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       *Keyboard
	// RemoveKeyboard clears a previously shown reply keyboard.
	RemoveKeyboard bool
}

// Sender is the outbound half of an adapter.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

type Adapter interface {
	Sender

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is implemented by adapters that can publish a command menu.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
