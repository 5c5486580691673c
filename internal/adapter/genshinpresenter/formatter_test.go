package genshinpresenter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kapu/genshin-telegram-bot/internal/enka"
	"github.com/kapu/genshin-telegram-bot/internal/hoyo"
	"github.com/kapu/genshin-telegram-bot/internal/msgcat"
)

func newTestFormatter(t *testing.T) *Formatter {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return NewFormatter(cat, 10)
}

func TestEscapeMarkdownV2(t *testing.T) {
	in := "a*b_c`d[e]f.g!h"
	got := EscapeMarkdownV2(in)
	want := "a\\*b\\_c\\`d\\[e\\]f\\.g\\!h"
	if got != want {
		t.Fatalf("escape = %q, want %q", got, want)
	}
}

func TestRenderNotesIncludesResinPair(t *testing.T) {
	f := newTestFormatter(t)
	r := f.Render(&hoyo.Result{
		Kind: hoyo.KindNotes,
		Notes: &hoyo.DailyNotes{
			Resin: 40, MaxResin: 160,
			ResinRecovery: 16 * time.Hour,
		},
	})
	if !strings.Contains(r.Text, "40/160") {
		t.Fatalf("notes reply missing resin pair: %q", r.Text)
	}
	if !r.Markdown {
		t.Fatalf("notes reply should be markdown")
	}
}

func TestRenderCharactersEscapesAndTruncates(t *testing.T) {
	f := newTestFormatter(t)
	chars := make([]hoyo.Character, 0, 12)
	for i := 0; i < 12; i++ {
		chars = append(chars, hoyo.Character{
			Name: fmt.Sprintf("Hero_%d", i), Level: 90, Constellation: 2, Weapon: "Sword*X",
		})
	}
	r := f.Render(&hoyo.Result{Kind: hoyo.KindCharacters, Characters: chars})
	if strings.Contains(r.Text, "Hero_0") {
		t.Fatalf("underscore not escaped: %q", r.Text)
	}
	if !strings.Contains(r.Text, "Hero\\_0") || !strings.Contains(r.Text, "Sword\\*X") {
		t.Fatalf("special characters not escaped: %q", r.Text)
	}
	if strings.Contains(r.Text, "Hero\\_10") {
		t.Fatalf("list not truncated at cap: %q", r.Text)
	}
	if !strings.Contains(r.Text, "Hero\\_9") {
		t.Fatalf("tenth entry missing: %q", r.Text)
	}
}

func TestRenderAbyssCaptionsDiffer(t *testing.T) {
	f := newTestFormatter(t)
	ab := &hoyo.SpiralAbyss{TotalStars: 27, Floors: 4}
	cur := f.Render(&hoyo.Result{Kind: hoyo.KindAbyssCurrent, Abyss: ab})
	prev := f.Render(&hoyo.Result{Kind: hoyo.KindAbyssPrevious, Abyss: ab})
	if cur.Text == prev.Text {
		t.Fatalf("current and previous abyss replies must be distinguishable")
	}
	if cur.Keyboard == nil || prev.Keyboard == nil {
		t.Fatalf("abyss replies must carry the cycle keyboard")
	}
}

func TestRenderDiaryHistoryPerResource(t *testing.T) {
	f := newTestFormatter(t)
	log := []hoyo.DiaryAction{{Action: "Daily Commission", Amount: 60}}
	prim := f.Render(&hoyo.Result{
		Kind: hoyo.KindDiaryHistory, Resource: hoyo.ResourcePrimogems,
		Period: hoyo.PeriodWeek, DiaryLog: log,
	})
	mora := f.Render(&hoyo.Result{
		Kind: hoyo.KindDiaryHistory, Resource: hoyo.ResourceMora,
		Period: hoyo.PeriodMonth, DiaryLog: log,
	})
	if prim.Text == mora.Text {
		t.Fatalf("resource headers must differ")
	}
	if !strings.Contains(prim.Text, "week") {
		t.Fatalf("period not surfaced: %q", prim.Text)
	}
	if !strings.Contains(prim.Text, "`60`") {
		t.Fatalf("amount missing: %q", prim.Text)
	}
}

func TestRenderRewardClaimIsPlainText(t *testing.T) {
	f := newTestFormatter(t)
	r := f.Render(&hoyo.Result{
		Kind:   hoyo.KindRewardClaim,
		Reward: &hoyo.DailyReward{Name: "Primogem", Amount: 20},
	})
	if r.Markdown {
		t.Fatalf("claim confirmation should be plain text")
	}
	if !strings.Contains(r.Text, "20x Primogem") {
		t.Fatalf("claim reply missing reward: %q", r.Text)
	}
}

func TestRenderRewardClaimWithoutEcho(t *testing.T) {
	f := newTestFormatter(t)
	r := f.Render(&hoyo.Result{Kind: hoyo.KindRewardClaim, Reward: &hoyo.DailyReward{}})
	want := f.Msg("rewards.claimed_unknown", nil)
	if r.Text != want {
		t.Fatalf("reply = %q, want %q", r.Text, want)
	}
	if strings.Contains(r.Text, "x ") || strings.Contains(r.Text, "0") {
		t.Fatalf("unresolved reward must not render an invented name or count: %q", r.Text)
	}
}

func TestRenderRewardStatusKeyboard(t *testing.T) {
	f := newTestFormatter(t)
	r := f.Render(&hoyo.Result{
		Kind:       hoyo.KindRewardStatus,
		RewardInfo: &hoyo.RewardInfo{SignedIn: true, ClaimedCount: 14},
	})
	if r.Keyboard == nil || len(r.Keyboard.InlineKeyboard) != 2 {
		t.Fatalf("status reply must carry claim and view buttons")
	}
	if r.Keyboard.InlineKeyboard[0][0].CallbackData != "claim_daily" {
		t.Fatalf("unexpected callback data: %+v", r.Keyboard.InlineKeyboard)
	}
}

func TestPeriodMenuCallbacks(t *testing.T) {
	f := newTestFormatter(t)
	r := f.PeriodMenu("resource_mora")
	if r.Keyboard == nil || len(r.Keyboard.InlineKeyboard) != 3 {
		t.Fatalf("period menu must list three ranges")
	}
	if !r.Markdown {
		t.Fatalf("keyboard replies must be markdown so delivery never mixes parse modes")
	}
	if got := r.Keyboard.InlineKeyboard[2][0].CallbackData; got != "resource_mora_3months" {
		t.Fatalf("callback data = %q", got)
	}
}

func TestShowcaseCard(t *testing.T) {
	f := newTestFormatter(t)
	sc := &enka.Showcase{
		UID: 800123456, Nickname: "Aether", Level: 58, Signature: "hi",
		Characters: []enka.ShowcaseCharacter{{AvatarID: 10000002, Level: 90}},
	}
	c, caption := f.ShowcaseCard(sc)
	if c.UID != 800123456 || len(c.Lines) != 2 {
		t.Fatalf("unexpected card: %+v", c)
	}
	if !strings.Contains(caption, "800123456") {
		t.Fatalf("caption missing uid: %q", caption)
	}
}
