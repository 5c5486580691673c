package tgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// Client is a minimal Telegram Bot API client. Outbound sends go through a
// shared limiter to stay under the Bot API flood limit.
type Client struct {
	baseURL string
	token   string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	limiter        *rate.Limiter
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithSendRate(perSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:        "https://api.telegram.org",
		token:          strings.TrimSpace(token),
		http:           &fasthttp.Client{ReadTimeout: 65 * time.Second, WriteTimeout: 15 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 15 * time.Second,
		limiter:        rate.NewLimiter(rate.Limit(25), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSec,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	// deadline must outlive the server-side long-poll window
	wait := time.Duration(timeoutSec+10) * time.Second
	if err := c.call(ctx, "getUpdates", payload, &updates, wait); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, "sendMessage", map[string]any{"chat_id": chatID, "text": text})
}

// SendMarkdown sends a MarkdownV2-styled message with an optional inline
// keyboard. The caller is responsible for escaping dynamic values.
func (c *Client) SendMarkdown(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) error {
	payload := map[string]any{"chat_id": chatID, "text": text, "parse_mode": "MarkdownV2"}
	if kb != nil {
		payload["reply_markup"] = kb
	}
	return c.send(ctx, "sendMessage", payload)
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, kb *InlineKeyboardMarkup, markdown bool) error {
	payload := map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}
	if markdown {
		payload["parse_mode"] = "MarkdownV2"
	}
	if kb != nil {
		payload["reply_markup"] = kb
	}
	return c.send(ctx, "editMessageText", payload)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	return c.send(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID})
}

// SendPhoto uploads PNG bytes with a plain-text caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return err
		}
	}
	fw, err := w.CreateFormFile("photo", "card.png")
	if err != nil {
		return err
	}
	if _, err := fw.Write(png); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.methodURL("sendPhoto"))
	req.Header.SetContentType(w.FormDataContentType())
	req.SetBody(body.Bytes())

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx, c.defaultTimeout)); err != nil {
		return fmt.Errorf("sendPhoto failed: %w", err)
	}
	return checkResponse(resp.Body(), resp.StatusCode(), nil)
}

func (c *Client) send(ctx context.Context, method string, payload map[string]any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.call(ctx, method, payload, nil, c.defaultTimeout)
}

func (c *Client) call(ctx context.Context, method string, payload any, out any, timeout time.Duration) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.methodURL(method))
	req.Header.SetContentType("application/json")

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", method, err)
		}
		req.SetBody(raw)
	}

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx, timeout)); err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	return checkResponse(resp.Body(), resp.StatusCode(), out)
}

func checkResponse(body []byte, status int, out any) error {
	var env struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("telegram api error: status=%d body=%s", status, truncate(string(body), 256))
	}
	if !env.OK {
		return fmt.Errorf("telegram api error: %s", env.Description)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %T: %w", out, err)
		}
	}
	return nil
}

func (c *Client) deadline(ctx context.Context, timeout time.Duration) time.Time {
	dl := time.Now().Add(timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
