package tgram

import (
	"context"
	"sync"
	"testing"
	"time"
)

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]Update
	offsets []int64
	done    chan struct{}
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if len(s.batches) == 0 {
		select {
		case s.done <- struct{}{}:
		default:
		}
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func TestPollerAdvancesOffsetAndRoutes(t *testing.T) {
	src := &scriptedSource{
		batches: [][]Update{
			{
				{UpdateID: 10, Message: &Message{MessageID: 1, From: &User{ID: 42}, Chat: Chat{ID: 42}, Text: "/resin"}},
				{UpdateID: 11, CallbackQuery: &CallbackQuery{ID: "cb1", From: &User{ID: 42}, Data: "claim_daily"}},
			},
		},
		done: make(chan struct{}, 1),
	}

	var mu sync.Mutex
	var gotMsgs []string
	var gotCallbacks []string
	p := NewPoller(src, 1, nil)
	p.OnMessage(func(m *Message) {
		mu.Lock()
		gotMsgs = append(gotMsgs, m.Text)
		mu.Unlock()
	})
	p.OnCallback(func(cb *CallbackQuery) {
		mu.Lock()
		gotCallbacks = append(gotCallbacks, cb.Data)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	select {
	case <-src.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller never drained the scripted batch")
	}
	cancel()
	<-errCh

	// handlers run on goroutines; give them a beat
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		ok := len(gotMsgs) == 1 && len(gotCallbacks) == 1
		mu.Unlock()
		if ok || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(gotMsgs) != 1 || gotMsgs[0] != "/resin" {
		t.Fatalf("messages routed = %v", gotMsgs)
	}
	if len(gotCallbacks) != 1 || gotCallbacks[0] != "claim_daily" {
		t.Fatalf("callbacks routed = %v", gotCallbacks)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.offsets) < 2 || src.offsets[1] != 12 {
		t.Fatalf("offset sequence = %v, want second poll at 12", src.offsets)
	}
}
