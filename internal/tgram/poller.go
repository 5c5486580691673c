package tgram

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// UpdateSource abstracts GetUpdates so the loop can be tested without HTTP.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error)
}

// Poller drives the long-poll loop and fans updates out to the registered
// handlers. Each update is handled on its own goroutine so one slow remote
// call does not block unrelated commands.
type Poller struct {
	src        UpdateSource
	timeoutSec int
	log        *zap.Logger

	onMessage  func(*Message)
	onCallback func(*CallbackQuery)
}

func NewPoller(src UpdateSource, timeoutSec int, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{src: src, timeoutSec: timeoutSec, log: log}
}

func (p *Poller) OnMessage(fn func(*Message))        { p.onMessage = fn }
func (p *Poller) OnCallback(fn func(*CallbackQuery)) { p.onCallback = fn }

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := p.src.GetUpdates(ctx, offset, p.timeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("getUpdates failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.dispatch(u)
		}
	}
}

func (p *Poller) dispatch(u Update) {
	switch {
	case u.Message != nil && p.onMessage != nil:
		msg := u.Message
		go p.onMessage(msg)
	case u.CallbackQuery != nil && p.onCallback != nil:
		cb := u.CallbackQuery
		go p.onCallback(cb)
	}
}
