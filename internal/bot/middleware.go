package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "petbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] is the outermost middleware.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Log.Error("panic recovered", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// MWRequestLog logs every request; fast successful ones only at DEBUG.
func MWRequestLog() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			d := time.Since(start)
			switch {
			case err != nil:
				req.Log.Warn("request failed", logx.Duration("dur", d), logx.Err(err))
			case d >= 750*time.Millisecond:
				req.Log.Info("request ok", logx.Duration("dur", d))
			default:
				req.Log.Debug("request ok", logx.Duration("dur", d))
			}
			return err
		}
	}
}

// MWReplyOnError tells the user something went wrong when a handler fails
// without answering.
func MWReplyOnError() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			err := next(ctx, req)
			if err != nil && ctx.Err() == nil {
				_ = req.Reply(ctx, TextInternalError)
			}
			return err
		}
	}
}
