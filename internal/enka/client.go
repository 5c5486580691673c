package enka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Showcase is the public character loadout a player displays on their
// profile. Requires only a uid, no session.
type Showcase struct {
	UID        int64
	Nickname   string
	Level      int
	Signature  string
	Characters []ShowcaseCharacter
}

type ShowcaseCharacter struct {
	AvatarID int64
	Level    int
}

// Client reads showcases from the public Enka API.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	userAgent      string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 15 * time.Second,
		userAgent:      "genshin-telegram-bot/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch loads the showcase for uid.
func (c *Client) Fetch(ctx context.Context, uid int64) (*Showcase, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/api/uid/" + strconv.FormatInt(uid, 10))
	req.Header.Set("User-Agent", c.userAgent)

	deadline := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("enka request failed: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, fmt.Errorf("enka api error: status=%d", status)
	}
	return parseShowcase(uid, resp.Body())
}

func parseShowcase(uid int64, body []byte) (*Showcase, error) {
	var raw struct {
		PlayerInfo struct {
			Nickname           string `json:"nickname"`
			Level              int    `json:"level"`
			Signature          string `json:"signature"`
			ShowAvatarInfoList []struct {
				AvatarID int64 `json:"avatarId"`
				Level    int   `json:"level"`
			} `json:"showAvatarInfoList"`
		} `json:"playerInfo"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode showcase: %w", err)
	}
	sc := &Showcase{
		UID:       uid,
		Nickname:  raw.PlayerInfo.Nickname,
		Level:     raw.PlayerInfo.Level,
		Signature: raw.PlayerInfo.Signature,
	}
	for _, a := range raw.PlayerInfo.ShowAvatarInfoList {
		sc.Characters = append(sc.Characters, ShowcaseCharacter{AvatarID: a.AvatarID, Level: a.Level})
	}
	return sc, nil
}
