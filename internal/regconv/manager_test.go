package regconv

import (
	"testing"
	"time"
)

func TestInvalidMethodStaysInPlace(t *testing.T) {
	m := NewManager(time.Minute)
	if p := m.Begin(42); p != PromptChooseMethod {
		t.Fatalf("Begin prompt = %v", p)
	}

	for i := 0; i < 3; i++ {
		res, ok := m.Step(42, "telnet")
		if !ok {
			t.Fatalf("conversation vanished on attempt %d", i)
		}
		if res.Done || res.Prompt != PromptBadMethod {
			t.Fatalf("attempt %d: result = %+v, want re-prompt", i, res)
		}
	}

	// still accepts a valid token afterwards
	res, ok := m.Step(42, "COOKIES")
	if !ok || res.Prompt != PromptCookies {
		t.Fatalf("valid method after retries: %+v ok=%v", res, ok)
	}
}

func TestCookieFieldCountEnforced(t *testing.T) {
	m := NewManager(time.Minute)
	m.Begin(42)
	if res, _ := m.Step(42, "cookies"); res.Prompt != PromptCookies {
		t.Fatalf("expected cookie prompt, got %+v", res)
	}

	for _, bad := range []string{"a,b,c", "a,b,c,d,e", "a,,c,d", "only-one"} {
		res, ok := m.Step(42, bad)
		if !ok {
			t.Fatalf("conversation dropped on %q", bad)
		}
		if res.Done || res.Prompt != PromptBadCookies {
			t.Fatalf("input %q: result = %+v, want re-prompt", bad, res)
		}
	}

	res, ok := m.Step(42, " ltuid , ltoken , ltmid , ctoken ")
	if !ok || !res.Done {
		t.Fatalf("expected completion, got %+v ok=%v", res, ok)
	}
	if res.Method != MethodCookies {
		t.Fatalf("method = %v", res.Method)
	}
	if res.Cookies.LtuidV2 != "ltuid" || res.Cookies.CookieTokenV2 != "ctoken" {
		t.Fatalf("cookie fields not trimmed: %+v", res.Cookies)
	}
	if m.Active(42) {
		t.Fatalf("conversation must terminate after completion")
	}
}

func TestLoginCollectsEmailThenPassword(t *testing.T) {
	m := NewManager(time.Minute)
	m.Begin(42)
	m.Step(42, "login")

	res, _ := m.Step(42, "user@example.com")
	if res.Done || res.Prompt != PromptPassword {
		t.Fatalf("after email: %+v", res)
	}
	res, _ = m.Step(42, "hunter2")
	if !res.Done || res.Method != MethodLogin {
		t.Fatalf("after password: %+v", res)
	}
	if res.Email != "user@example.com" || res.Password != "hunter2" {
		t.Fatalf("collected credentials = %q / %q", res.Email, res.Password)
	}
}

func TestIdleEviction(t *testing.T) {
	m := NewManager(time.Minute)
	now := time.Unix(1700000000, 0)
	m.now = func() time.Time { return now }

	m.Begin(42)
	now = now.Add(2 * time.Minute)
	if m.Active(42) {
		t.Fatalf("idle conversation must evict")
	}
	if _, ok := m.Step(42, "cookies"); ok {
		t.Fatalf("Step must not resurrect an evicted conversation")
	}

	m.Begin(43)
	now = now.Add(2 * time.Minute)
	if dropped := m.Sweep(); dropped != 1 {
		t.Fatalf("Sweep dropped %d, want 1", dropped)
	}
}

func TestStepWithoutConversation(t *testing.T) {
	m := NewManager(time.Minute)
	if _, ok := m.Step(42, "cookies"); ok {
		t.Fatalf("Step without Begin must report no conversation")
	}
}
