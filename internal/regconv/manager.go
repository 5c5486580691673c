package regconv

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kapu/genshin-telegram-bot/internal/store"
)

// Method is the registration path the user picked.
type Method string

const (
	MethodCookies Method = "cookies"
	MethodLogin   Method = "login"
)

// State of one registration conversation.
type State int

const (
	StateChoosingMethod State = iota
	StateEnteringCookies
	StateEnteringEmail
	StateEnteringPassword
)

// Prompt identifies what the dispatcher should say next; the catalog owns
// the actual wording.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptChooseMethod
	PromptBadMethod
	PromptCookies
	PromptBadCookies
	PromptEmail
	PromptPassword
)

// StepResult describes the outcome of feeding one message into a
// conversation. When Done is set the conversation has terminated and the
// collected credentials are ready for the gateway authentication call.
type StepResult struct {
	Prompt Prompt
	Done   bool

	Method   Method
	Cookies  store.SessionFields
	Email    string
	Password string
}

type conversation struct {
	state      State
	method     Method
	email      string
	lastActive time.Time
}

// Manager holds in-flight registration conversations per user id. Entries
// are evicted after idleTTL so abandoned registrations cannot accumulate;
// state is process-local and intentionally not durable.
type Manager struct {
	mu      sync.Mutex
	conv    map[int64]*conversation
	idleTTL time.Duration
	now     func() time.Time
}

func NewManager(idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Manager{
		conv:    make(map[int64]*conversation),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Begin starts (or restarts) a conversation for userID.
func (m *Manager) Begin(userID int64) Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conv[userID] = &conversation{state: StateChoosingMethod, lastActive: m.now()}
	return PromptChooseMethod
}

// Active reports whether userID has a live conversation, evicting it first
// if it idled out.
func (m *Manager) Active(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conv[userID]
	if !ok {
		return false
	}
	if m.now().Sub(c.lastActive) > m.idleTTL {
		delete(m.conv, userID)
		return false
	}
	return true
}

// Abort drops the conversation, if any.
func (m *Manager) Abort(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conv, userID)
}

// Step feeds one message into the conversation. The second return is false
// when no conversation exists for userID. Invalid input re-prompts and
// stays in place; it never advances the state.
func (m *Manager) Step(userID int64, text string) (StepResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conv[userID]
	if !ok {
		return StepResult{}, false
	}
	if m.now().Sub(c.lastActive) > m.idleTTL {
		delete(m.conv, userID)
		return StepResult{}, false
	}
	c.lastActive = m.now()

	switch c.state {
	case StateChoosingMethod:
		switch strings.ToLower(strings.TrimSpace(text)) {
		case string(MethodCookies):
			c.method = MethodCookies
			c.state = StateEnteringCookies
			return StepResult{Prompt: PromptCookies}, true
		case string(MethodLogin):
			c.method = MethodLogin
			c.state = StateEnteringEmail
			return StepResult{Prompt: PromptEmail}, true
		default:
			return StepResult{Prompt: PromptBadMethod}, true
		}

	case StateEnteringCookies:
		fields, ok := splitCookieLine(text)
		if !ok {
			return StepResult{Prompt: PromptBadCookies}, true
		}
		delete(m.conv, userID)
		return StepResult{Done: true, Method: MethodCookies, Cookies: fields}, true

	case StateEnteringEmail:
		c.email = strings.TrimSpace(text)
		c.state = StateEnteringPassword
		return StepResult{Prompt: PromptPassword}, true

	case StateEnteringPassword:
		email := c.email
		delete(m.conv, userID)
		return StepResult{Done: true, Method: MethodLogin, Email: email, Password: strings.TrimSpace(text)}, true
	}

	// unreachable states terminate the conversation
	delete(m.conv, userID)
	return StepResult{}, false
}

// splitCookieLine expects exactly the four v2 tokens, comma-delimited.
func splitCookieLine(text string) (store.SessionFields, bool) {
	parts := strings.Split(text, ",")
	if len(parts) != 4 {
		return store.SessionFields{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return store.SessionFields{}, false
		}
	}
	return store.SessionFields{
		LtuidV2:       parts[0],
		LtokenV2:      parts[1],
		LtmidV2:       parts[2],
		CookieTokenV2: parts[3],
	}, true
}

// Sweep evicts idle conversations and returns how many were dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	cutoff := m.now().Add(-m.idleTTL)
	for id, c := range m.conv {
		if c.lastActive.Before(cutoff) {
			delete(m.conv, id)
			dropped++
		}
	}
	return dropped
}

// StartSweeper runs Sweep periodically until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Sweep()
			}
		}
	}()
}
