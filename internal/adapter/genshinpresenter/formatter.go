package genshinpresenter

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/kapu/genshin-telegram-bot/internal/card"
	"github.com/kapu/genshin-telegram-bot/internal/enka"
	"github.com/kapu/genshin-telegram-bot/internal/hoyo"
	"github.com/kapu/genshin-telegram-bot/internal/msgcat"
	"github.com/kapu/genshin-telegram-bot/internal/tgram"
)

// Reply is the single connector-visible message a command produces.
type Reply struct {
	Text     string
	Markdown bool
	Keyboard *tgram.InlineKeyboardMarkup

	PhotoPNG []byte
	Caption  string
}

// Formatter renders gateway results into Telegram-ready replies. Pure: no
// I/O, no state beyond the loaded catalog and the display cap.
type Formatter struct {
	cat     *msgcat.Catalog
	listCap int
}

func NewFormatter(cat *msgcat.Catalog, listCap int) *Formatter {
	if listCap <= 0 {
		listCap = 10
	}
	return &Formatter{cat: cat, listCap: listCap}
}

// Msg renders a catalog key directly; used by the dispatcher for fixed
// prompts and error lines.
func (f *Formatter) Msg(key string, data any) string {
	return f.cat.MustRender(key, data)
}

// Render turns one tagged query result into a reply.
func (f *Formatter) Render(res *hoyo.Result) Reply {
	switch res.Kind {
	case hoyo.KindNotes:
		return f.renderNotes(res.Notes)
	case hoyo.KindCharacters:
		return f.renderCharacters(res.Characters)
	case hoyo.KindAbyssCurrent, hoyo.KindAbyssPrevious:
		return f.renderAbyss(res.Abyss, res.Kind == hoyo.KindAbyssPrevious)
	case hoyo.KindDiarySummary:
		return f.renderDiarySummary(res.Diary)
	case hoyo.KindDiaryHistory:
		return f.renderDiaryHistory(res.DiaryLog, res.Resource, res.Period)
	case hoyo.KindRewardStatus:
		return f.renderRewardStatus(res.RewardInfo)
	case hoyo.KindRewardClaim:
		if res.Reward.Name == "" {
			return Reply{Text: f.Msg("rewards.claimed_unknown", nil)}
		}
		return Reply{Text: f.Msg("rewards.claimed", map[string]any{
			"Amount": res.Reward.Amount,
			"Name":   res.Reward.Name,
		})}
	case hoyo.KindRewardHistory:
		return f.renderRewardHistory(res.Claimed)
	case hoyo.KindProfile:
		return Reply{
			Markdown: true,
			Text: f.Msg("profile.text", map[string]any{
				"Rank":       res.User.AdventureRank,
				"Characters": res.User.Characters,
			}),
		}
	default:
		return Reply{Text: f.Msg("errors.remote", nil)}
	}
}

func (f *Formatter) renderNotes(n *hoyo.DailyNotes) Reply {
	return Reply{
		Markdown: true,
		Text: f.Msg("notes.text", map[string]any{
			"Resin":    n.Resin,
			"MaxResin": n.MaxResin,
			"Recovery": EscapeMarkdownV2(n.ResinRecovery.String()),
		}),
	}
}

func (f *Formatter) renderCharacters(chars []hoyo.Character) Reply {
	shown := chars
	if len(shown) > f.listCap {
		shown = shown[:f.listCap]
	}
	lines := lo.Map(shown, func(c hoyo.Character, _ int) string {
		return fmt.Sprintf("\\- %s Lv\\.%d \\| C%d \\| %s",
			EscapeMarkdownV2(c.Name), c.Level, c.Constellation, EscapeMarkdownV2(c.Weapon))
	})
	var sb strings.Builder
	sb.WriteString(f.Msg("characters.header", nil))
	for _, line := range lines {
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	return Reply{Markdown: true, Text: sb.String()}
}

func (f *Formatter) renderAbyss(a *hoyo.SpiralAbyss, previous bool) Reply {
	captionKey := "abyss.current_caption"
	if previous {
		captionKey = "abyss.previous_caption"
	}
	text := f.Msg("abyss.summary", map[string]any{
		"Caption": f.Msg(captionKey, nil),
		"Stars":   a.TotalStars,
		"Floors":  a.Floors,
	})
	kb := &tgram.InlineKeyboardMarkup{InlineKeyboard: [][]tgram.InlineKeyboardButton{
		tgram.Row(tgram.Button(f.Msg("abyss.button_previous", nil), "abyss_previous")),
		tgram.Row(tgram.Button(f.Msg("abyss.button_current", nil), "abyss_current")),
	}}
	return Reply{Markdown: true, Text: text, Keyboard: kb}
}

func (f *Formatter) renderDiarySummary(d *hoyo.DiarySummary) Reply {
	var sb strings.Builder
	sb.WriteString(f.Msg("diary.summary", map[string]any{
		"Primogems": d.CurrentPrimogems,
		"Mora":      d.CurrentMora,
	}))
	if len(d.Categories) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(f.Msg("diary.sources_header", nil))
		for _, cat := range d.Categories {
			sb.WriteString(fmt.Sprintf("\n\\- %d%% من %s \\(`%d`\\)",
				cat.Percentage, EscapeMarkdownV2(cat.Name), cat.Amount))
		}
	}
	kb := &tgram.InlineKeyboardMarkup{InlineKeyboard: [][]tgram.InlineKeyboardButton{
		tgram.Row(tgram.Button(f.Msg("diary.button_primogems", nil), "resource_primogems")),
		tgram.Row(tgram.Button(f.Msg("diary.button_mora", nil), "resource_mora")),
	}}
	return Reply{Markdown: true, Text: sb.String(), Keyboard: kb}
}

func (f *Formatter) renderDiaryHistory(log []hoyo.DiaryAction, res hoyo.Resource, period hoyo.Period) Reply {
	headerKey := "diary.primogems_header"
	unit := "primogems"
	if res == hoyo.ResourceMora {
		headerKey = "diary.mora_header"
		unit = "mora"
	}
	var sb strings.Builder
	sb.WriteString(f.Msg(headerKey, map[string]any{"Period": EscapeMarkdownV2(string(period))}))
	shown := log
	if len(shown) > f.listCap {
		shown = shown[:f.listCap]
	}
	for _, a := range shown {
		sb.WriteString(fmt.Sprintf("\n\\- %s : `%d` %s", EscapeMarkdownV2(a.Action), a.Amount, unit))
	}
	return Reply{Markdown: true, Text: sb.String()}
}

func (f *Formatter) renderRewardStatus(info *hoyo.RewardInfo) Reply {
	statusKey := "rewards.not_signed_in"
	if info.SignedIn {
		statusKey = "rewards.signed_in"
	}
	text := f.Msg("rewards.status", map[string]any{
		"Status":  f.Msg(statusKey, nil),
		"Claimed": info.ClaimedCount,
	})
	kb := &tgram.InlineKeyboardMarkup{InlineKeyboard: [][]tgram.InlineKeyboardButton{
		tgram.Row(tgram.Button(f.Msg("rewards.button_claim", nil), "claim_daily")),
		tgram.Row(tgram.Button(f.Msg("rewards.button_view", nil), "view_claimed")),
	}}
	return Reply{Markdown: true, Text: text, Keyboard: kb}
}

func (f *Formatter) renderRewardHistory(list []hoyo.ClaimedReward) Reply {
	var sb strings.Builder
	sb.WriteString(f.Msg("rewards.history_header", nil))
	shown := list
	if len(shown) > f.listCap {
		shown = shown[:f.listCap]
	}
	for _, r := range shown {
		sb.WriteString(fmt.Sprintf("\n\\- %s : %dx %s",
			EscapeMarkdownV2(r.Time.Format("2006-01-02")), r.Amount, EscapeMarkdownV2(r.Name)))
	}
	return Reply{Markdown: true, Text: sb.String()}
}

// PeriodMenu is the intermediate keyboard shown after a diary resource is
// picked; no gateway call is involved.
func (f *Formatter) PeriodMenu(resource string) Reply {
	kb := &tgram.InlineKeyboardMarkup{InlineKeyboard: [][]tgram.InlineKeyboardButton{
		tgram.Row(tgram.Button(f.Msg("diary.button_week", nil), resource+"_week")),
		tgram.Row(tgram.Button(f.Msg("diary.button_month", nil), resource+"_month")),
		tgram.Row(tgram.Button(f.Msg("diary.button_3months", nil), resource+"_3months")),
	}}
	return Reply{Markdown: true, Text: f.Msg("diary.choose_period", nil), Keyboard: kb}
}

// ShowcaseCard shapes a public showcase into card-render input plus the
// photo caption.
func (f *Formatter) ShowcaseCard(sc *enka.Showcase) (card.Card, string) {
	title := fmt.Sprintf("%s (AR %d)", sc.Nickname, sc.Level)
	lines := make([]string, 0, len(sc.Characters)+1)
	if strings.TrimSpace(sc.Signature) != "" {
		lines = append(lines, sc.Signature)
	}
	shown := sc.Characters
	if len(shown) > f.listCap {
		shown = shown[:f.listCap]
	}
	for _, c := range shown {
		lines = append(lines, fmt.Sprintf("Avatar %d  Lv.%d", c.AvatarID, c.Level))
	}
	caption := f.Msg("card.caption", map[string]any{"UID": sc.UID})
	return card.Card{UID: sc.UID, Title: title, Lines: lines}, caption
}
