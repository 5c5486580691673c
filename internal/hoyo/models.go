package hoyo

import (
	"strings"
	"time"
)

// Kind enumerates the closed set of remote queries the dispatcher can issue.
type Kind string

const (
	KindNotes         Kind = "notes"
	KindCharacters    Kind = "characters"
	KindAbyssCurrent  Kind = "abyss-current"
	KindAbyssPrevious Kind = "abyss-previous"
	KindDiarySummary  Kind = "diary-summary"
	KindDiaryHistory  Kind = "diary-history"
	KindRewardStatus  Kind = "reward-status"
	KindRewardClaim   Kind = "reward-claim"
	KindRewardHistory Kind = "reward-history"
	KindProfile       Kind = "profile"
)

// RequiresUID reports whether the query hits a uid-scoped endpoint. The
// check-in endpoints authenticate on cookies alone.
func (k Kind) RequiresUID() bool {
	switch k {
	case KindRewardStatus, KindRewardClaim, KindRewardHistory:
		return false
	}
	return true
}

// Period is passed through to the remote diary endpoints unmodified.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	Period3Months Period = "3months"
)

// Resource selects which diary ledger a history query reads.
type Resource string

const (
	ResourcePrimogems Resource = "primogems"
	ResourceMora      Resource = "mora"
)

// Credential carries the linked game uid and the v2 cookie tokens for one
// authenticated query. Copied from the stored record per invocation.
type Credential struct {
	UID           int64
	LtuidV2       string
	LtokenV2      string
	LtmidV2       string
	CookieTokenV2 string
}

func (c Credential) sessionComplete() bool {
	return strings.TrimSpace(c.LtuidV2) != "" &&
		strings.TrimSpace(c.LtokenV2) != "" &&
		strings.TrimSpace(c.LtmidV2) != "" &&
		strings.TrimSpace(c.CookieTokenV2) != ""
}

// cookieHeader renders the Cookie header value the HoYoLAB API expects.
func (c Credential) cookieHeader() string {
	parts := []string{
		"ltuid_v2=" + c.LtuidV2,
		"ltoken_v2=" + c.LtokenV2,
		"ltmid_v2=" + c.LtmidV2,
		"cookie_token_v2=" + c.CookieTokenV2,
	}
	return strings.Join(parts, "; ")
}

// QueryRequest is built per command invocation and discarded afterwards.
type QueryRequest struct {
	Kind       Kind
	Credential Credential
	Resource   Resource // diary-history only
	Period     Period   // diary-history only
}

// DailyNotes is the real-time resource snapshot.
type DailyNotes struct {
	Resin         int
	MaxResin      int
	ResinRecovery time.Duration
	Primogems     int64
	Mora          int64
}

type Character struct {
	Name          string
	Level         int
	Constellation int
	Weapon        string
}

type SpiralAbyss struct {
	TotalStars int
	Floors     int
	MaxFloor   string
}

type DiaryCategory struct {
	Name       string
	Amount     int64
	Percentage int
}

type DiarySummary struct {
	CurrentPrimogems int64
	CurrentMora      int64
	Categories       []DiaryCategory
}

type DiaryAction struct {
	Action string
	Amount int64
}

type RewardInfo struct {
	SignedIn     bool
	ClaimedCount int
}

type DailyReward struct {
	Name   string
	Amount int
}

type ClaimedReward struct {
	Name   string
	Amount int
	Time   time.Time
}

type PartialUser struct {
	UID           int64
	Nickname      string
	AdventureRank int
	Characters    int
}

// Result is the tagged union over the Kind space; exactly the variant
// matching Kind is populated.
type Result struct {
	Kind       Kind
	Resource   Resource // diary-history only, echoed from the request
	Period     Period   // diary-history only, echoed from the request
	Notes      *DailyNotes
	Characters []Character
	Abyss      *SpiralAbyss
	Diary      *DiarySummary
	DiaryLog   []DiaryAction
	RewardInfo *RewardInfo
	Reward     *DailyReward
	Claimed    []ClaimedReward
	User       *PartialUser
}
