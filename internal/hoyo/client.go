package hoyo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const signActID = "e202102251931481"

// Client issues authenticated queries against the HoYoLAB API. Each command
// is a single user-initiated attempt; there is no retry or backoff here.
type Client struct {
	recordBaseURL string
	signBaseURL   string
	http          *fasthttp.Client

	defaultTimeout time.Duration
	now            func() time.Time
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithSignBaseURL(u string) Option {
	return func(c *Client) { c.signBaseURL = strings.TrimRight(u, "/") }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(recordBaseURL string, opts ...Option) *Client {
	c := &Client{
		recordBaseURL:  strings.TrimRight(recordBaseURL, "/"),
		signBaseURL:    "https://sg-hk4e-api.hoyolab.com",
		http:           &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 15 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query resolves one typed request into its tagged result.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*Result, error) {
	if !req.Credential.sessionComplete() {
		return nil, ErrMissingCredential
	}

	switch req.Kind {
	case KindNotes:
		n, err := c.dailyNotes(ctx, req.Credential)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, Notes: n}, nil
	case KindCharacters:
		chars, err := c.characters(ctx, req.Credential)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, Characters: chars}, nil
	case KindAbyssCurrent, KindAbyssPrevious:
		ab, err := c.spiralAbyss(ctx, req.Credential, req.Kind == KindAbyssPrevious)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, Abyss: ab}, nil
	case KindDiarySummary:
		d, err := c.diarySummary(ctx, req.Credential)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, Diary: d}, nil
	case KindDiaryHistory:
		log, err := c.diaryHistory(ctx, req.Credential, req.Resource, req.Period)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, Resource: req.Resource, Period: req.Period, DiaryLog: log}, nil
	case KindRewardStatus:
		info, err := c.rewardInfo(ctx, req.Credential)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, RewardInfo: info}, nil
	case KindRewardClaim:
		r, err := c.claimReward(ctx, req.Credential)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, Reward: r}, nil
	case KindRewardHistory:
		list, err := c.claimedRewards(ctx, req.Credential)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, Claimed: list}, nil
	case KindProfile:
		u, err := c.partialUser(ctx, req.Credential)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, User: u}, nil
	default:
		return nil, fmt.Errorf("unknown query kind %q", req.Kind)
	}
}

// Login exchanges email/password web credentials for a full cookie set and
// uid; used only by the registration conversation.
func (c *Client) Login(ctx context.Context, email, password string) (*Credential, error) {
	body := map[string]string{"account": email, "password": password}
	var out struct {
		UID     string `json:"uid"`
		Cookies struct {
			LtuidV2       string `json:"ltuid_v2"`
			LtokenV2      string `json:"ltoken_v2"`
			LtmidV2       string `json:"ltmid_v2"`
			CookieTokenV2 string `json:"cookie_token_v2"`
		} `json:"cookies"`
	}
	url := c.signBaseURL + "/account/auth/api/webLoginByPassword"
	if err := c.doJSON(ctx, fasthttp.MethodPost, url, Credential{}, body, &out); err != nil {
		return nil, err
	}
	uid, err := strconv.ParseInt(out.UID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad uid in login response", ErrRemoteUnavailable)
	}
	cred := &Credential{
		UID:           uid,
		LtuidV2:       out.Cookies.LtuidV2,
		LtokenV2:      out.Cookies.LtokenV2,
		LtmidV2:       out.Cookies.LtmidV2,
		CookieTokenV2: out.Cookies.CookieTokenV2,
	}
	if !cred.sessionComplete() {
		return nil, fmt.Errorf("%w: incomplete cookie set in login response", ErrInvalidSession)
	}
	return cred, nil
}

func (c *Client) recordURL(path string, cred Credential) (string, error) {
	server, err := recognizeServer(cred.UID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return fmt.Sprintf("%s%s?role_id=%d&server=%s", c.recordBaseURL, path, cred.UID, server), nil
}

func (c *Client) dailyNotes(ctx context.Context, cred Credential) (*DailyNotes, error) {
	url, err := c.recordURL("/game_record/genshin/api/dailyNote", cred)
	if err != nil {
		return nil, err
	}
	var raw struct {
		CurrentResin      int    `json:"current_resin"`
		MaxResin          int    `json:"max_resin"`
		ResinRecoveryTime string `json:"resin_recovery_time"`
		CurrentPrimogems  int64  `json:"current_primogems"`
		CurrentMora       int64  `json:"current_mora"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, url, cred, nil, &raw); err != nil {
		return nil, err
	}
	secs, _ := strconv.ParseInt(raw.ResinRecoveryTime, 10, 64)
	return &DailyNotes{
		Resin:         raw.CurrentResin,
		MaxResin:      raw.MaxResin,
		ResinRecovery: time.Duration(secs) * time.Second,
		Primogems:     raw.CurrentPrimogems,
		Mora:          raw.CurrentMora,
	}, nil
}

func (c *Client) characters(ctx context.Context, cred Credential) ([]Character, error) {
	server, err := recognizeServer(cred.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	body := map[string]any{"role_id": strconv.FormatInt(cred.UID, 10), "server": server}
	var raw struct {
		Avatars []struct {
			Name                    string `json:"name"`
			Level                   int    `json:"level"`
			ActivedConstellationNum int    `json:"actived_constellation_num"`
			Weapon                  struct {
				Name string `json:"name"`
			} `json:"weapon"`
		} `json:"avatars"`
	}
	url := c.recordBaseURL + "/game_record/genshin/api/character"
	if err := c.doJSON(ctx, fasthttp.MethodPost, url, cred, body, &raw); err != nil {
		return nil, err
	}
	// remote ordering is preserved; display truncation happens downstream
	chars := make([]Character, 0, len(raw.Avatars))
	for _, a := range raw.Avatars {
		chars = append(chars, Character{
			Name:          a.Name,
			Level:         a.Level,
			Constellation: a.ActivedConstellationNum,
			Weapon:        a.Weapon.Name,
		})
	}
	return chars, nil
}

func (c *Client) spiralAbyss(ctx context.Context, cred Credential, previous bool) (*SpiralAbyss, error) {
	url, err := c.recordURL("/game_record/genshin/api/spiralAbyss", cred)
	if err != nil {
		return nil, err
	}
	schedule := 1
	if previous {
		schedule = 2
	}
	url += "&schedule_type=" + strconv.Itoa(schedule)
	var raw struct {
		TotalStar int               `json:"total_star"`
		MaxFloor  string            `json:"max_floor"`
		Floors    []json.RawMessage `json:"floors"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, url, cred, nil, &raw); err != nil {
		return nil, err
	}
	return &SpiralAbyss{TotalStars: raw.TotalStar, Floors: len(raw.Floors), MaxFloor: raw.MaxFloor}, nil
}

func (c *Client) ledgerURL(path string, cred Credential) (string, error) {
	server, err := recognizeServer(cred.UID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return fmt.Sprintf("%s%s?uid=%d&region=%s&lang=ar-ae", c.signBaseURL, path, cred.UID, server), nil
}

func (c *Client) diarySummary(ctx context.Context, cred Credential) (*DiarySummary, error) {
	url, err := c.ledgerURL("/event/ysledgeros/month_info", cred)
	if err != nil {
		return nil, err
	}
	var raw struct {
		MonthData struct {
			CurrentPrimogems int64 `json:"current_primogems"`
			CurrentMora      int64 `json:"current_mora"`
			GroupBy          []struct {
				ActionName string `json:"action"`
				Num        int64  `json:"num"`
				Percent    int    `json:"percent"`
			} `json:"group_by"`
		} `json:"month_data"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, url, cred, nil, &raw); err != nil {
		return nil, err
	}
	d := &DiarySummary{
		CurrentPrimogems: raw.MonthData.CurrentPrimogems,
		CurrentMora:      raw.MonthData.CurrentMora,
	}
	for _, g := range raw.MonthData.GroupBy {
		d.Categories = append(d.Categories, DiaryCategory{Name: g.ActionName, Amount: g.Num, Percentage: g.Percent})
	}
	return d, nil
}

func (c *Client) diaryHistory(ctx context.Context, cred Credential, res Resource, period Period) ([]DiaryAction, error) {
	url, err := c.ledgerURL("/event/ysledgeros/month_detail", cred)
	if err != nil {
		return nil, err
	}
	ledgerType := 1
	if res == ResourceMora {
		ledgerType = 2
	}
	// period is opaque pass-through; the remote service owns its meaning
	url += fmt.Sprintf("&type=%d&period=%s&limit=50", ledgerType, string(period))
	var raw struct {
		List []struct {
			Action string `json:"action"`
			Num    int64  `json:"num"`
		} `json:"list"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, url, cred, nil, &raw); err != nil {
		return nil, err
	}
	log := make([]DiaryAction, 0, len(raw.List))
	for _, a := range raw.List {
		log = append(log, DiaryAction{Action: a.Action, Amount: a.Num})
	}
	return log, nil
}

func (c *Client) rewardInfo(ctx context.Context, cred Credential) (*RewardInfo, error) {
	url := c.signBaseURL + "/event/sol/info?act_id=" + signActID
	var raw struct {
		IsSign       bool `json:"is_sign"`
		TotalSignDay int  `json:"total_sign_day"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, url, cred, nil, &raw); err != nil {
		return nil, err
	}
	return &RewardInfo{SignedIn: raw.IsSign, ClaimedCount: raw.TotalSignDay}, nil
}

func (c *Client) claimReward(ctx context.Context, cred Credential) (*DailyReward, error) {
	url := c.signBaseURL + "/event/sol/sign?act_id=" + signActID
	if err := c.doJSON(ctx, fasthttp.MethodPost, url, cred, map[string]string{"act_id": signActID}, nil); err != nil {
		return nil, err
	}
	// the sign endpoint does not echo the reward; fetch today's entry. A
	// failed lookup returns a zero reward, the claim itself still succeeded.
	rewards, err := c.claimedRewards(ctx, cred)
	if err != nil || len(rewards) == 0 {
		return &DailyReward{}, nil
	}
	return &DailyReward{Name: rewards[0].Name, Amount: rewards[0].Amount}, nil
}

func (c *Client) claimedRewards(ctx context.Context, cred Credential) ([]ClaimedReward, error) {
	url := c.signBaseURL + "/event/sol/award?act_id=" + signActID
	var raw struct {
		List []struct {
			Name      string `json:"name"`
			Cnt       int    `json:"cnt"`
			CreatedAt string `json:"created_at"`
		} `json:"list"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, url, cred, nil, &raw); err != nil {
		return nil, err
	}
	list := make([]ClaimedReward, 0, len(raw.List))
	for _, r := range raw.List {
		t, _ := time.Parse("2006-01-02 15:04:05", r.CreatedAt)
		list = append(list, ClaimedReward{Name: r.Name, Amount: r.Cnt, Time: t})
	}
	return list, nil
}

func (c *Client) partialUser(ctx context.Context, cred Credential) (*PartialUser, error) {
	url, err := c.recordURL("/game_record/genshin/api/index", cred)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Role struct {
			Nickname string `json:"nickname"`
			Level    int    `json:"level"`
		} `json:"role"`
		Avatars []json.RawMessage `json:"avatars"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, url, cred, nil, &raw); err != nil {
		return nil, err
	}
	return &PartialUser{
		UID:           cred.UID,
		Nickname:      raw.Role.Nickname,
		AdventureRank: raw.Role.Level,
		Characters:    len(raw.Avatars),
	}, nil
}

// doJSON performs one request, unwraps the {retcode, message, data} envelope
// and classifies non-zero retcodes. No retries: surfaced failures stay
// user-visible and the user decides whether to try again.
func (c *Client) doJSON(ctx context.Context, method, url string, cred Credential, in any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	req.Header.Set("DS", dsHeader(c.now()))
	req.Header.Set("x-rpc-app_version", "1.5.0")
	req.Header.Set("x-rpc-client_type", "5")
	req.Header.Set("x-rpc-language", "ar-ae")
	if cred != (Credential{}) {
		req.Header.Set("Cookie", cred.cookieHeader())
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	deadline := c.computeDeadline(ctx)
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: status=%d", ErrRemoteUnavailable, status)
	}
	return decodeEnvelope(resp.Body(), out)
}

func decodeEnvelope(body []byte, out any) error {
	var env struct {
		Retcode int             `json:"retcode"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: decode envelope: %v", ErrRemoteUnavailable, err)
	}
	if err := classifyRetcode(env.Retcode, env.Message); err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: decode data: %v", ErrRemoteUnavailable, err)
		}
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}
