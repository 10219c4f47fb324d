package app

import (
	"context"

	"petbot/internal/notify"
	kit "petbot/internal/transport"
)

// chatClient sends through the shared throttle and answers callbacks directly.
type chatClient struct {
	*notify.Throttled
	adapter kit.Adapter
}

func (c chatClient) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return c.adapter.AnswerCallback(ctx, callbackID, text)
}
