package conversation

import (
	"context"
	"errors"
	"strings"

	kit "petbot/internal/transport"
	logx "petbot/pkg/logx"
)

// ErrCancelled is returned from Wait after the user left the conversation with /cancelar.
var ErrCancelled = errors.New("conversation cancelled")

// Client is the transport surface a conversation needs.
type Client interface {
	kit.Sender
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Session is one suspended dialog with a user.
type Session interface {
	Send(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	Wait(ctx context.Context) (kit.Update, error)
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Conversation is a Session bound to one (chat, user) pair.
type Conversation struct {
	ChatID int64
	UserID int64
	Log    logx.Logger

	client Client
	in     chan kit.Update
	done   <-chan struct{}
}

func (c *Conversation) Send(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return c.client.SendText(ctx, kit.ChatTarget{ChatID: c.ChatID}, text, opt)
}

// Wait blocks until the user's next update arrives.
func (c *Conversation) Wait(ctx context.Context) (kit.Update, error) {
	select {
	case <-ctx.Done():
		return kit.Update{}, ctx.Err()
	case <-c.done:
		return kit.Update{}, ErrCancelled
	case up := <-c.in:
		return up, nil
	}
}

func (c *Conversation) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.client.AnswerCallback(ctx, callbackID, "")
}

func (c *Conversation) deliver(up kit.Update) bool {
	select {
	case c.in <- up:
		return true
	default:
		return false
	}
}

// WaitText blocks until the user sends a text message, acknowledging stray callbacks.
func WaitText(ctx context.Context, s Session) (string, error) {
	for {
		up, err := s.Wait(ctx)
		if err != nil {
			return "", err
		}
		if up.Callback != nil {
			_ = s.AnswerCallback(ctx, up.Callback.ID)
			continue
		}
		if up.Message != nil {
			return strings.TrimSpace(up.Message.Text), nil
		}
	}
}
