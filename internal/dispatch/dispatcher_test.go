package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kapu/genshin-telegram-bot/internal/adapter/genshinpresenter"
	"github.com/kapu/genshin-telegram-bot/internal/card"
	"github.com/kapu/genshin-telegram-bot/internal/enka"
	"github.com/kapu/genshin-telegram-bot/internal/hoyo"
	"github.com/kapu/genshin-telegram-bot/internal/msgcat"
	"github.com/kapu/genshin-telegram-bot/internal/regconv"
	"github.com/kapu/genshin-telegram-bot/internal/store"
	"github.com/kapu/genshin-telegram-bot/internal/tgram"
)

type fakeGateway struct {
	queries  []hoyo.QueryRequest
	result   *hoyo.Result
	err      error
	loginErr error
}

func (f *fakeGateway) Query(_ context.Context, req hoyo.QueryRequest) (*hoyo.Result, error) {
	f.queries = append(f.queries, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return resultFor(req), nil
}

func (f *fakeGateway) Login(context.Context, string, string) (*hoyo.Credential, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &hoyo.Credential{UID: 700000001, LtuidV2: "a", LtokenV2: "b", LtmidV2: "c", CookieTokenV2: "d"}, nil
}

// resultFor fabricates a minimal result matching the request kind.
func resultFor(req hoyo.QueryRequest) *hoyo.Result {
	r := &hoyo.Result{Kind: req.Kind, Resource: req.Resource, Period: req.Period}
	switch req.Kind {
	case hoyo.KindNotes:
		r.Notes = &hoyo.DailyNotes{Resin: 40, MaxResin: 160}
	case hoyo.KindCharacters:
		r.Characters = []hoyo.Character{{Name: "Amber", Level: 20, Weapon: "Bow"}}
	case hoyo.KindAbyssCurrent, hoyo.KindAbyssPrevious:
		r.Abyss = &hoyo.SpiralAbyss{TotalStars: 9, Floors: 2}
	case hoyo.KindDiarySummary:
		r.Diary = &hoyo.DiarySummary{CurrentPrimogems: 100, CurrentMora: 5000}
	case hoyo.KindDiaryHistory:
		r.DiaryLog = []hoyo.DiaryAction{{Action: "Event", Amount: 40}}
	case hoyo.KindRewardStatus:
		r.RewardInfo = &hoyo.RewardInfo{SignedIn: false, ClaimedCount: 3}
	case hoyo.KindRewardClaim:
		r.Reward = &hoyo.DailyReward{Name: "Mora", Amount: 10000}
	case hoyo.KindRewardHistory:
		r.Claimed = []hoyo.ClaimedReward{{Name: "Mora", Amount: 10000, Time: time.Now()}}
	case hoyo.KindProfile:
		r.User = &hoyo.PartialUser{AdventureRank: 58, Characters: 40}
	}
	return r
}

type fakeShowcase struct {
	sc  *enka.Showcase
	err error
}

func (f *fakeShowcase) Fetch(_ context.Context, uid int64) (*enka.Showcase, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.sc != nil {
		return f.sc, nil
	}
	return &enka.Showcase{UID: uid, Nickname: "Tester", Level: 57}, nil
}

type delivered struct {
	chatID    int64
	messageID int64
	edited    bool
	reply     genshinpresenter.Reply
}

type fakeReplier struct {
	sent []delivered
	acks int
}

func (f *fakeReplier) Deliver(_ context.Context, chatID int64, r genshinpresenter.Reply) error {
	f.sent = append(f.sent, delivered{chatID: chatID, reply: r})
	return nil
}

func (f *fakeReplier) Edit(_ context.Context, chatID, messageID int64, r genshinpresenter.Reply) error {
	f.sent = append(f.sent, delivered{chatID: chatID, messageID: messageID, edited: true, reply: r})
	return nil
}

func (f *fakeReplier) Ack(context.Context, string) error {
	f.acks++
	return nil
}

func (f *fakeReplier) last(t *testing.T) delivered {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("no reply delivered")
	}
	return f.sent[len(f.sent)-1]
}

type harness struct {
	d   *Dispatcher
	st  *store.MemoryStore
	gw  *fakeGateway
	out *fakeReplier
	cat *msgcat.Catalog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	st := store.NewMemoryStore()
	gw := &fakeGateway{}
	out := &fakeReplier{}
	d := New(st, gw, &fakeShowcase{}, card.NewRenderer("fallback"),
		genshinpresenter.NewFormatter(cat, 10), regconv.NewManager(0), out)
	return &harness{d: d, st: st, gw: gw, out: out, cat: cat}
}

func (h *harness) register(t *testing.T, userID, uid int64) {
	t.Helper()
	err := h.st.Upsert(context.Background(), &store.UserCredential{
		UserID: userID, UID: uid,
		Session: store.SessionFields{LtuidV2: "u", LtokenV2: "t", LtmidV2: "m", CookieTokenV2: "c"},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
}

func msgFrom(userID, chatID int64, text string) *tgram.Message {
	return &tgram.Message{MessageID: 5, From: &tgram.User{ID: userID}, Chat: tgram.Chat{ID: chatID}, Text: text}
}

func cbFrom(userID, chatID int64, data string) *tgram.CallbackQuery {
	return &tgram.CallbackQuery{
		ID:      "cb1",
		From:    &tgram.User{ID: userID},
		Message: &tgram.Message{MessageID: 77, Chat: tgram.Chat{ID: chatID}},
		Data:    data,
	}
}

func TestQueryWithoutUIDInstructsSetuid(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 0)

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/resin"))

	got := h.out.last(t)
	want := h.cat.MustRender("setuid.missing", nil)
	if got.reply.Text != want {
		t.Fatalf("reply = %q, want %q", got.reply.Text, want)
	}
	if len(h.gw.queries) != 0 {
		t.Fatalf("gateway must not be called without a uid, got %d calls", len(h.gw.queries))
	}
	if len(h.st.ErrorLogs()) != 0 {
		t.Fatalf("missing uid must not be logged as an error")
	}
}

func TestRewardQueriesWorkWithoutUID(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 0)

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/daily_rewards"))

	if len(h.gw.queries) != 1 || h.gw.queries[0].Kind != hoyo.KindRewardStatus {
		t.Fatalf("check-in status should reach the gateway on cookies alone, got %+v", h.gw.queries)
	}
}

func TestUnregisteredUserShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/resin"))

	got := h.out.last(t)
	want := h.cat.MustRender("errors.not_registered", nil)
	if got.reply.Text != want {
		t.Fatalf("reply = %q, want %q", got.reply.Text, want)
	}
	if len(h.gw.queries) != 0 {
		t.Fatalf("gateway must not be called for unregistered users, got %d calls", len(h.gw.queries))
	}
	if len(h.st.ErrorLogs()) != 0 {
		t.Fatalf("missing registration must not be logged as an error")
	}
}

func TestAlreadyClaimedIsInformationalNotLogged(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800000001)
	h.gw.err = hoyo.ErrAlreadyClaimed

	h.d.HandleCallback(context.Background(), cbFrom(1, 10, "claim_daily"))

	got := h.out.last(t)
	want := h.cat.MustRender("rewards.already_claimed", nil)
	if got.reply.Text != want {
		t.Fatalf("reply = %q, want %q", got.reply.Text, want)
	}
	if !got.edited || got.messageID != 77 {
		t.Fatalf("claim callback should edit the originating message, got %+v", got)
	}
	if len(h.st.ErrorLogs()) != 0 {
		t.Fatalf("already-claimed must not reach the error log")
	}
}

func TestRewardCallbacksEditInPlace(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800000001)
	ctx := context.Background()

	h.d.HandleCallback(ctx, cbFrom(1, 10, "claim_daily"))
	claim := h.out.last(t)
	if !claim.edited || claim.messageID != 77 {
		t.Fatalf("claim should edit the status message, got %+v", claim)
	}

	h.d.HandleCallback(ctx, cbFrom(1, 10, "view_claimed"))
	view := h.out.last(t)
	if !view.edited || view.messageID != 77 {
		t.Fatalf("history view should edit the status message, got %+v", view)
	}
}

func TestRemoteFailureIsLoggedWithGenericReply(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800000001)
	h.gw.err = errors.New("boom")

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/characters"))

	got := h.out.last(t)
	want := h.cat.MustRender("errors.remote", nil)
	if got.reply.Text != want {
		t.Fatalf("reply = %q, want %q", got.reply.Text, want)
	}
	logs := h.st.ErrorLogs()
	if len(logs) != 1 {
		t.Fatalf("expected one logged error, got %d", len(logs))
	}
	if logs[0].Command != "/characters" {
		t.Fatalf("logged command = %q", logs[0].Command)
	}
}

func TestInvalidSessionDistinctReply(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800000001)
	h.gw.err = hoyo.ErrInvalidSession

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/daily"))

	got := h.out.last(t)
	want := h.cat.MustRender("errors.invalid_session", nil)
	if got.reply.Text != want {
		t.Fatalf("reply = %q, want %q", got.reply.Text, want)
	}
	if len(h.st.ErrorLogs()) != 1 {
		t.Fatalf("invalid session should be logged once")
	}
}

func TestAbyssVariants(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800000001)

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/abyss"))
	cur := h.out.last(t)
	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/abyss prev"))
	prev := h.out.last(t)

	if h.gw.queries[0].Kind != hoyo.KindAbyssCurrent || h.gw.queries[1].Kind != hoyo.KindAbyssPrevious {
		t.Fatalf("query kinds = %v, %v", h.gw.queries[0].Kind, h.gw.queries[1].Kind)
	}
	if cur.reply.Text == prev.reply.Text {
		t.Fatalf("current and previous abyss replies must differ")
	}
}

func TestAbyssCallbackEditsInPlace(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800000001)

	h.d.HandleCallback(context.Background(), cbFrom(1, 10, "abyss_previous"))

	got := h.out.last(t)
	if !got.edited || got.messageID != 77 {
		t.Fatalf("abyss callback should edit the originating message, got %+v", got)
	}
	if h.out.acks != 1 {
		t.Fatalf("callback should be acknowledged once, got %d", h.out.acks)
	}
}

func TestDiaryCallbackFlow(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800000001)

	h.d.HandleCallback(context.Background(), cbFrom(1, 10, "resource_mora"))
	menu := h.out.last(t)
	if !menu.edited || menu.reply.Keyboard == nil {
		t.Fatalf("resource pick should edit into the period menu, got %+v", menu)
	}
	if len(h.gw.queries) != 0 {
		t.Fatalf("period menu must not hit the gateway")
	}

	h.d.HandleCallback(context.Background(), cbFrom(1, 10, "resource_mora_month"))
	if len(h.gw.queries) != 1 {
		t.Fatalf("expected one history query, got %d", len(h.gw.queries))
	}
	q := h.gw.queries[0]
	if q.Kind != hoyo.KindDiaryHistory || q.Resource != hoyo.ResourceMora || q.Period != hoyo.PeriodMonth {
		t.Fatalf("unexpected history query: %+v", q)
	}
}

func TestSetUIDValidation(t *testing.T) {
	h := newHarness(t)

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/setuid abc"))
	if got := h.out.last(t).reply.Text; got != h.cat.MustRender("setuid.invalid", nil) {
		t.Fatalf("reply = %q", got)
	}

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/setuid 800123456"))
	cred, err := h.st.Get(context.Background(), 1)
	if err != nil || cred == nil || cred.UID != 800123456 {
		t.Fatalf("uid not stored: cred=%+v err=%v", cred, err)
	}
}

func TestSetCookiesRequiresFourFields(t *testing.T) {
	h := newHarness(t)

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/setcookies a,b,c"))
	if got := h.out.last(t).reply.Text; got != h.cat.MustRender("setcookies.usage", nil) {
		t.Fatalf("reply = %q", got)
	}

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/setcookies a,b,c,d"))
	cred, err := h.st.Get(context.Background(), 1)
	if err != nil || cred == nil || !cred.Session.Complete() {
		t.Fatalf("session not stored: cred=%+v err=%v", cred, err)
	}
}

func TestRegistrationCookiesFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleMessage(ctx, msgFrom(1, 10, "/register"))
	if got := h.out.last(t).reply.Text; got != h.cat.MustRender("register.prompt_method", nil) {
		t.Fatalf("reply = %q", got)
	}

	h.d.HandleMessage(ctx, msgFrom(1, 10, "wrong"))
	if got := h.out.last(t).reply.Text; got != h.cat.MustRender("register.bad_method", nil) {
		t.Fatalf("reply = %q", got)
	}

	h.d.HandleMessage(ctx, msgFrom(1, 10, "cookies"))
	h.d.HandleMessage(ctx, msgFrom(1, 10, "u1,t1,m1,c1"))

	if len(h.gw.queries) != 1 || h.gw.queries[0].Kind != hoyo.KindRewardStatus {
		t.Fatalf("expected one validation probe, got %+v", h.gw.queries)
	}
	cred, err := h.st.Get(ctx, 1)
	if err != nil || cred == nil || cred.Session.LtuidV2 != "u1" {
		t.Fatalf("credentials not persisted: cred=%+v err=%v", cred, err)
	}
	// no uid is known via cookies; the reply points at /setuid, never "0"
	if got := h.out.last(t).reply.Text; got != h.cat.MustRender("register.success_no_uid", nil) {
		t.Fatalf("reply = %q, want the setuid pointer", got)
	}
}

func TestRegistrationValidationFailureDoesNotPersist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gw.err = hoyo.ErrInvalidSession

	h.d.HandleMessage(ctx, msgFrom(1, 10, "/register"))
	h.d.HandleMessage(ctx, msgFrom(1, 10, "cookies"))
	h.d.HandleMessage(ctx, msgFrom(1, 10, "u1,t1,m1,c1"))

	if got := h.out.last(t).reply.Text; got != h.cat.MustRender("register.failed", nil) {
		t.Fatalf("reply = %q", got)
	}
	cred, err := h.st.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cred != nil {
		t.Fatalf("failed registration must not persist, got %+v", cred)
	}
}

func TestRegistrationLoginFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleMessage(ctx, msgFrom(1, 10, "/register"))
	h.d.HandleMessage(ctx, msgFrom(1, 10, "login"))
	h.d.HandleMessage(ctx, msgFrom(1, 10, "me@example.com"))
	h.d.HandleMessage(ctx, msgFrom(1, 10, "hunter2"))

	cred, err := h.st.Get(ctx, 1)
	if err != nil || cred == nil {
		t.Fatalf("credentials not persisted: %v", err)
	}
	if cred.UID != 700000001 {
		t.Fatalf("uid from login not stored, got %d", cred.UID)
	}
}

func TestCommandAbortsStaleConversation(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800000001)
	ctx := context.Background()

	h.d.HandleMessage(ctx, msgFrom(1, 10, "/register"))
	h.d.HandleMessage(ctx, msgFrom(1, 10, "/resin"))

	// Follow-up text must no longer be treated as a registration answer.
	before := len(h.out.sent)
	h.d.HandleMessage(ctx, msgFrom(1, 10, "cookies"))
	if len(h.out.sent) != before {
		t.Fatalf("stray text after abort should be ignored")
	}
}

func TestCardWithExplicitUID(t *testing.T) {
	h := newHarness(t)

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/card 800123456"))

	got := h.out.last(t)
	if len(got.reply.PhotoPNG) == 0 {
		t.Fatalf("card command should deliver a photo")
	}
	if !strings.Contains(got.reply.Caption, "800123456") {
		t.Fatalf("caption missing uid: %q", got.reply.Caption)
	}
}

func TestCardWithoutUIDUsesStored(t *testing.T) {
	h := newHarness(t)
	h.register(t, 1, 800999999)

	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/card"))

	got := h.out.last(t)
	if len(got.reply.PhotoPNG) == 0 {
		t.Fatalf("card command should deliver a photo")
	}
	if !strings.Contains(got.reply.Caption, "800999999") {
		t.Fatalf("caption missing stored uid: %q", got.reply.Caption)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.d.HandleMessage(context.Background(), msgFrom(1, 10, "/frobnicate"))
	if got := h.out.last(t).reply.Text; got != h.cat.MustRender("errors.unknown_command", nil) {
		t.Fatalf("reply = %q", got)
	}
}
