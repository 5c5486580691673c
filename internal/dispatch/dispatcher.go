package dispatch

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/genshin-telegram-bot/internal/adapter/genshinpresenter"
	"github.com/kapu/genshin-telegram-bot/internal/card"
	"github.com/kapu/genshin-telegram-bot/internal/enka"
	"github.com/kapu/genshin-telegram-bot/internal/hoyo"
	"github.com/kapu/genshin-telegram-bot/internal/obslog"
	"github.com/kapu/genshin-telegram-bot/internal/regconv"
	"github.com/kapu/genshin-telegram-bot/internal/store"
	"github.com/kapu/genshin-telegram-bot/internal/tgram"
)

// Gateway is the remote account-query surface the dispatcher talks to.
type Gateway interface {
	Query(ctx context.Context, req hoyo.QueryRequest) (*hoyo.Result, error)
	Login(ctx context.Context, email, password string) (*hoyo.Credential, error)
}

// ShowcaseSource fetches public character showcases by uid.
type ShowcaseSource interface {
	Fetch(ctx context.Context, uid int64) (*enka.Showcase, error)
}

// Replier delivers formatted replies; satisfied by genshinpresenter.Presenter
// and by fakes in tests.
type Replier interface {
	Deliver(ctx context.Context, chatID int64, r genshinpresenter.Reply) error
	Edit(ctx context.Context, chatID, messageID int64, r genshinpresenter.Reply) error
	Ack(ctx context.Context, callbackID string) error
}

// Dispatcher routes inbound updates to commands, registration conversations
// and callback handlers. Each invocation produces exactly one reply.
type Dispatcher struct {
	store    store.Store
	gw       Gateway
	showcase ShowcaseSource
	cards    card.Renderer
	fmtr     *genshinpresenter.Formatter
	reg      *regconv.Manager
	out      Replier
}

func New(st store.Store, gw Gateway, sc ShowcaseSource, cards card.Renderer,
	fmtr *genshinpresenter.Formatter, reg *regconv.Manager, out Replier) *Dispatcher {
	return &Dispatcher{store: st, gw: gw, showcase: sc, cards: cards, fmtr: fmtr, reg: reg, out: out}
}

// HandleMessage processes one inbound text message.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *tgram.Message) {
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	rid := uuid.NewString()

	if strings.HasPrefix(text, "/") {
		d.handleCommand(ctx, rid, userID, chatID, text)
		return
	}
	if d.reg.Active(userID) {
		d.handleRegistrationStep(ctx, rid, userID, chatID, text)
	}
}

// HandleCallback processes one inline-keyboard press. The originating
// message is edited in place for paging callbacks; claim and history
// callbacks answer with a fresh message.
func (d *Dispatcher) HandleCallback(ctx context.Context, cb *tgram.CallbackQuery) {
	if cb == nil || cb.Message == nil || cb.From == nil {
		return
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	rid := uuid.NewString()
	_ = d.out.Ack(ctx, cb.ID)

	data := cb.Data
	switch {
	case data == "claim_daily":
		d.edit(ctx, chatID, messageID, d.runQuery(ctx, rid, userID, "claim_daily", hoyo.QueryRequest{Kind: hoyo.KindRewardClaim}))
	case data == "view_claimed":
		d.edit(ctx, chatID, messageID, d.runQuery(ctx, rid, userID, "view_claimed", hoyo.QueryRequest{Kind: hoyo.KindRewardHistory}))
	case data == "abyss_previous" || data == "abyss_current":
		kind := hoyo.KindAbyssCurrent
		if data == "abyss_previous" {
			kind = hoyo.KindAbyssPrevious
		}
		d.edit(ctx, chatID, messageID, d.runQuery(ctx, rid, userID, data, hoyo.QueryRequest{Kind: kind}))
	case data == "resource_primogems" || data == "resource_mora":
		d.edit(ctx, chatID, messageID, d.fmtr.PeriodMenu(data))
	case strings.HasPrefix(data, "resource_"):
		res, period, ok := parseHistoryCallback(data)
		if !ok {
			return
		}
		d.edit(ctx, chatID, messageID, d.runQuery(ctx, rid, userID, data, hoyo.QueryRequest{
			Kind: hoyo.KindDiaryHistory, Resource: res, Period: period,
		}))
	}
}

func parseHistoryCallback(data string) (hoyo.Resource, hoyo.Period, bool) {
	rest := strings.TrimPrefix(data, "resource_")
	i := strings.IndexByte(rest, '_')
	if i < 0 {
		return "", "", false
	}
	res := hoyo.Resource(rest[:i])
	period := hoyo.Period(rest[i+1:])
	if res != hoyo.ResourcePrimogems && res != hoyo.ResourceMora {
		return "", "", false
	}
	switch period {
	case hoyo.PeriodWeek, hoyo.PeriodMonth, hoyo.Period3Months:
		return res, period, true
	}
	return "", "", false
}

func (d *Dispatcher) handleCommand(ctx context.Context, rid string, userID, chatID int64, text string) {
	parts := strings.Fields(text)
	cmd := strings.ToLower(parts[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := parts[1:]

	// A fresh command supersedes any half-finished registration.
	if cmd != "/register" && d.reg.Active(userID) {
		d.reg.Abort(userID)
	}

	switch cmd {
	case "/start", "/help":
		d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("help.text", nil)})
	case "/register":
		prompt := d.reg.Begin(userID)
		d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg(promptKey(prompt), nil)})
	case "/setuid":
		d.handleSetUID(ctx, rid, userID, chatID, args)
	case "/setcookies":
		d.handleSetCookies(ctx, rid, userID, chatID, args)
	case "/daily", "/resin":
		d.deliver(ctx, chatID, d.runQuery(ctx, rid, userID, cmd, hoyo.QueryRequest{Kind: hoyo.KindNotes}))
	case "/abyss":
		kind := hoyo.KindAbyssCurrent
		if len(args) > 0 && strings.EqualFold(args[0], "prev") {
			kind = hoyo.KindAbyssPrevious
		}
		d.deliver(ctx, chatID, d.runQuery(ctx, rid, userID, cmd, hoyo.QueryRequest{Kind: kind}))
	case "/diary", "/resources_diary":
		d.deliver(ctx, chatID, d.runQuery(ctx, rid, userID, cmd, hoyo.QueryRequest{Kind: hoyo.KindDiarySummary}))
	case "/characters":
		d.deliver(ctx, chatID, d.runQuery(ctx, rid, userID, cmd, hoyo.QueryRequest{Kind: hoyo.KindCharacters}))
	case "/profile":
		d.deliver(ctx, chatID, d.runQuery(ctx, rid, userID, cmd, hoyo.QueryRequest{Kind: hoyo.KindProfile}))
	case "/daily_rewards":
		d.deliver(ctx, chatID, d.runQuery(ctx, rid, userID, cmd, hoyo.QueryRequest{Kind: hoyo.KindRewardStatus}))
	case "/card":
		d.handleCard(ctx, rid, userID, chatID, args)
	default:
		d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("errors.unknown_command", nil)})
	}
}

func (d *Dispatcher) handleSetUID(ctx context.Context, rid string, userID, chatID int64, args []string) {
	if len(args) != 1 {
		d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("setuid.usage", nil)})
		return
	}
	uid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || uid <= 0 || len(args[0]) < 9 {
		d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("setuid.invalid", nil)})
		return
	}
	if err := d.store.SetUID(ctx, userID, uid); err != nil {
		d.deliver(ctx, chatID, d.errorReply(ctx, rid, userID, "/setuid", err))
		return
	}
	d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("setuid.done", map[string]any{"UID": uid})})
}

func (d *Dispatcher) handleSetCookies(ctx context.Context, rid string, userID, chatID int64, args []string) {
	fields, ok := parseCookieArg(strings.Join(args, " "))
	if !ok {
		d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("setcookies.usage", nil)})
		return
	}
	if err := d.store.ReplaceSession(ctx, userID, fields); err != nil {
		d.deliver(ctx, chatID, d.errorReply(ctx, rid, userID, "/setcookies", err))
		return
	}
	d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("setcookies.done", nil)})
}

func parseCookieArg(arg string) (store.SessionFields, bool) {
	parts := strings.Split(arg, ",")
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

func (d *Dispatcher) handleCard(ctx context.Context, rid string, userID, chatID int64, args []string) {
	var uid int64
	if len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || v <= 0 {
			d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("card.usage", nil)})
			return
		}
		uid = v
	} else {
		cred, err := d.store.Get(ctx, userID)
		if err != nil {
			d.deliver(ctx, chatID, d.errorReply(ctx, rid, userID, "/card", err))
			return
		}
		if cred == nil || cred.UID == 0 {
			d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("card.usage", nil)})
			return
		}
		uid = cred.UID
	}

	sc, err := d.showcase.Fetch(ctx, uid)
	if err != nil {
		d.deliver(ctx, chatID, d.errorReply(ctx, rid, userID, "/card", err))
		return
	}
	c, caption := d.fmtr.ShowcaseCard(sc)
	png, err := d.cards.Render(ctx, c)
	if err != nil {
		d.deliver(ctx, chatID, d.errorReply(ctx, rid, userID, "/card", err))
		return
	}
	d.deliver(ctx, chatID, genshinpresenter.Reply{PhotoPNG: png, Caption: caption})
}

// runQuery loads the stored credential, fills it into the request and maps
// the outcome into a reply.
func (d *Dispatcher) runQuery(ctx context.Context, rid string, userID int64, command string, req hoyo.QueryRequest) genshinpresenter.Reply {
	cred, err := d.store.Get(ctx, userID)
	if err != nil {
		return d.errorReply(ctx, rid, userID, command, err)
	}
	if cred == nil || !cred.Session.Complete() {
		return genshinpresenter.Reply{Text: d.fmtr.Msg("errors.not_registered", nil)}
	}
	// missing uid is a user state like missing registration, not a failure
	if req.Kind.RequiresUID() && cred.UID == 0 {
		return genshinpresenter.Reply{Text: d.fmtr.Msg("setuid.missing", nil)}
	}
	req.Credential = hoyo.Credential{
		UID:           cred.UID,
		LtuidV2:       cred.Session.LtuidV2,
		LtokenV2:      cred.Session.LtokenV2,
		LtmidV2:       cred.Session.LtmidV2,
		CookieTokenV2: cred.Session.CookieTokenV2,
	}
	res, err := d.gw.Query(ctx, req)
	if err != nil {
		return d.errorReply(ctx, rid, userID, command, err)
	}
	return d.fmtr.Render(res)
}

// errorReply maps a failure to its user-facing line. Expected user states
// are never logged; session expiry and remote failures are.
func (d *Dispatcher) errorReply(ctx context.Context, rid string, userID int64, command string, err error) genshinpresenter.Reply {
	switch {
	case errors.Is(err, hoyo.ErrMissingCredential):
		return genshinpresenter.Reply{Text: d.fmtr.Msg("errors.not_registered", nil)}
	case errors.Is(err, hoyo.ErrAlreadyClaimed):
		return genshinpresenter.Reply{Text: d.fmtr.Msg("rewards.already_claimed", nil)}
	case errors.Is(err, hoyo.ErrInvalidSession):
		obslog.L().Warn("session rejected by remote",
			zap.String("rid", rid), zap.Int64("user", userID), zap.String("command", command))
		d.logError(ctx, userID, command, err)
		return genshinpresenter.Reply{Text: d.fmtr.Msg("errors.invalid_session", nil)}
	default:
		obslog.L().Error("command failed",
			zap.String("rid", rid), zap.Int64("user", userID), zap.String("command", command), zap.Error(err))
		d.logError(ctx, userID, command, err)
		return genshinpresenter.Reply{Text: d.fmtr.Msg("errors.remote", nil)}
	}
}

func (d *Dispatcher) logError(ctx context.Context, userID int64, command string, err error) {
	entry := store.ErrorEntry{UserID: userID, Command: command, Message: err.Error(), At: time.Now().UTC()}
	if lerr := d.store.LogError(ctx, entry); lerr != nil {
		obslog.L().Warn("error log write failed", zap.Error(lerr))
	}
}

func (d *Dispatcher) handleRegistrationStep(ctx context.Context, rid string, userID, chatID int64, text string) {
	res, ok := d.reg.Step(userID, text)
	if !ok {
		return
	}
	if !res.Done {
		d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg(promptKey(res.Prompt), nil)})
		return
	}
	d.finishRegistration(ctx, rid, userID, chatID, res)
}

// finishRegistration authenticates the collected credentials before anything
// is persisted. A failed validation leaves the stored record untouched.
func (d *Dispatcher) finishRegistration(ctx context.Context, rid string, userID, chatID int64, res regconv.StepResult) {
	var (
		session store.SessionFields
		uid     int64
	)
	switch res.Method {
	case regconv.MethodLogin:
		cred, err := d.gw.Login(ctx, res.Email, res.Password)
		if err != nil {
			obslog.L().Warn("registration login failed", zap.String("rid", rid), zap.Int64("user", userID), zap.Error(err))
			d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("register.failed", nil)})
			return
		}
		session = store.SessionFields{
			LtuidV2:       cred.LtuidV2,
			LtokenV2:      cred.LtokenV2,
			LtmidV2:       cred.LtmidV2,
			CookieTokenV2: cred.CookieTokenV2,
		}
		uid = cred.UID
	default:
		session = res.Cookies
	}

	// The sign-in status endpoint authenticates on cookies alone, which
	// makes it a cheap validity probe before we persist anything.
	probe := hoyo.Credential{
		LtuidV2:       session.LtuidV2,
		LtokenV2:      session.LtokenV2,
		LtmidV2:       session.LtmidV2,
		CookieTokenV2: session.CookieTokenV2,
	}
	if _, err := d.gw.Query(ctx, hoyo.QueryRequest{Kind: hoyo.KindRewardStatus, Credential: probe}); err != nil {
		obslog.L().Warn("registration validation failed", zap.String("rid", rid), zap.Int64("user", userID), zap.Error(err))
		d.deliver(ctx, chatID, genshinpresenter.Reply{Text: d.fmtr.Msg("register.failed", nil)})
		return
	}

	if uid == 0 {
		if existing, err := d.store.Get(ctx, userID); err == nil && existing != nil {
			uid = existing.UID
		}
	}
	if err := d.store.Upsert(ctx, &store.UserCredential{UserID: userID, UID: uid, Session: session}); err != nil {
		d.deliver(ctx, chatID, d.errorReply(ctx, rid, userID, "/register", err))
		return
	}
	if uid == 0 {
		// no uid known yet; point at /setuid instead of rendering a zero
		d.deliver(ctx, chatID, genshinpresenter.Reply{
			Markdown: true,
			Text:     d.fmtr.Msg("register.success_no_uid", nil),
		})
		return
	}
	d.deliver(ctx, chatID, genshinpresenter.Reply{
		Markdown: true,
		Text:     d.fmtr.Msg("register.success", map[string]any{"UID": uid}),
	})
}

func promptKey(p regconv.Prompt) string {
	switch p {
	case regconv.PromptChooseMethod:
		return "register.prompt_method"
	case regconv.PromptBadMethod:
		return "register.bad_method"
	case regconv.PromptCookies:
		return "register.prompt_cookies"
	case regconv.PromptBadCookies:
		return "register.bad_cookies"
	case regconv.PromptEmail:
		return "register.prompt_email"
	case regconv.PromptPassword:
		return "register.prompt_password"
	default:
		return "register.prompt_method"
	}
}

func (d *Dispatcher) deliver(ctx context.Context, chatID int64, r genshinpresenter.Reply) {
	if err := d.out.Deliver(ctx, chatID, r); err != nil {
		obslog.L().Warn("reply delivery failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (d *Dispatcher) edit(ctx context.Context, chatID, messageID int64, r genshinpresenter.Reply) {
	if err := d.out.Edit(ctx, chatID, messageID, r); err != nil {
		obslog.L().Warn("reply edit failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}
