// Package telegram uploads media groups through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"render-sender/internal/sender"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	// MaxGroupSize is the Bot API limit for one media group.
	MaxGroupSize = 10

	defaultTimeout = 10 * time.Minute
	redactedToken  = "<token>"
)

// ErrNoToken is returned when the client is built without a bot token.
var ErrNoToken = errors.New("telegram bot token is empty")

var errEmptyGroup = errors.New("telegram: empty media group")

// APIError is a rejected Bot API call.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram %s: error %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("telegram %s: error %d: %s", e.Method, e.StatusCode, e.Description)
}

// Client sends files to chats. Each call builds a short-lived bot bound to
// the caller's context, so no request is made until something is sent.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url = strings.TrimSpace(url); url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// New builds a client for token.
func New(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}

	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// contextDoer attaches ctx to every request the bot library issues.
type contextDoer struct {
	ctx  context.Context
	http *http.Client
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.http.Do(req.WithContext(d.ctx))
}

func (c *Client) bot(ctx context.Context) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  c.token,
		Client: contextDoer{ctx: ctx, http: c.http},
	}
	bot.SetAPIEndpoint(c.baseURL + "/bot%s/%s")
	return bot
}

// User is the subset of the getMe result we use.
type User struct {
	ID       int64
	IsBot    bool
	Username string
}

// GetMe checks the token and returns the bot identity.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	me, err := c.bot(ctx).GetMe()
	if err != nil {
		return User{}, c.wrapError("getMe", err)
	}
	return User{ID: me.ID, IsBot: me.IsBot, Username: me.UserName}, nil
}

// SendGroup uploads items to chatID as one message. A single item is sent
// with the matching sendVideo/sendPhoto/sendDocument call; larger groups are
// split into batches of MaxGroupSize.
func (c *Client) SendGroup(ctx context.Context, chatID string, items []sender.MediaItem) error {
	if len(items) == 0 {
		return errEmptyGroup
	}
	for _, item := range items {
		if _, err := os.Stat(item.Path); err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
	}
	if len(items) == 1 {
		return c.sendSingle(ctx, chatID, items[0])
	}

	items = normalizeKinds(items)
	for start := 0; start < len(items); start += MaxGroupSize {
		end := min(start+MaxGroupSize, len(items))
		batch := items[start:end]
		var err error
		if len(batch) == 1 {
			err = c.sendSingle(ctx, chatID, batch[0])
		} else {
			err = c.sendMediaGroup(ctx, chatID, batch)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// normalizeKinds sends every item as a document when any item is one; the
// API rejects groups mixing documents with photos or videos.
func normalizeKinds(items []sender.MediaItem) []sender.MediaItem {
	hasDocument := false
	for _, item := range items {
		if item.Kind == sender.KindDocument {
			hasDocument = true
			break
		}
	}
	if !hasDocument {
		return items
	}

	out := make([]sender.MediaItem, len(items))
	for i, item := range items {
		item.Kind = sender.KindDocument
		out[i] = item
	}
	return out
}

// chatTarget splits a configured chat into a numeric ID or a @channel name.
func chatTarget(chatID string) (int64, string) {
	chatID = strings.TrimSpace(chatID)
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return id, ""
	}
	return 0, chatID
}

func (c *Client) sendSingle(ctx context.Context, chatID string, item sender.MediaItem) error {
	id, channel := chatTarget(chatID)
	file := tgbotapi.FilePath(item.Path)

	var (
		msg    tgbotapi.Chattable
		method string
	)
	switch item.Kind {
	case sender.KindVideo:
		cfg := tgbotapi.NewVideo(id, file)
		cfg.ChannelUsername = channel
		cfg.Caption = item.Caption
		msg, method = cfg, "sendVideo"
	case sender.KindPhoto:
		cfg := tgbotapi.NewPhoto(id, file)
		cfg.ChannelUsername = channel
		cfg.Caption = item.Caption
		msg, method = cfg, "sendPhoto"
	default:
		cfg := tgbotapi.NewDocument(id, file)
		cfg.ChannelUsername = channel
		cfg.Caption = item.Caption
		msg, method = cfg, "sendDocument"
	}

	_, err := c.bot(ctx).Send(msg)
	return c.wrapError(method, err)
}

func (c *Client) sendMediaGroup(ctx context.Context, chatID string, items []sender.MediaItem) error {
	media := make([]interface{}, len(items))
	for i, item := range items {
		file := tgbotapi.FilePath(item.Path)
		switch item.Kind {
		case sender.KindVideo:
			m := tgbotapi.NewInputMediaVideo(file)
			m.Caption = item.Caption
			media[i] = m
		case sender.KindPhoto:
			m := tgbotapi.NewInputMediaPhoto(file)
			m.Caption = item.Caption
			media[i] = m
		default:
			m := tgbotapi.NewInputMediaDocument(file)
			m.Caption = item.Caption
			media[i] = m
		}
	}

	id, channel := chatTarget(chatID)
	cfg := tgbotapi.NewMediaGroup(id, media)
	cfg.ChannelUsername = channel

	_, err := c.bot(ctx).SendMediaGroup(cfg)
	return c.wrapError("sendMediaGroup", err)
}

// wrapError converts library errors and strips the request URL, which
// carries the token, from transport failures.
func (c *Client) wrapError(method string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{Method: method, StatusCode: apiErr.Code, Description: apiErr.Message}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if msg := err.Error(); strings.Contains(msg, c.token) {
		return fmt.Errorf("telegram %s: %s", method, strings.ReplaceAll(msg, c.token, redactedToken))
	}
	return fmt.Errorf("telegram %s: %w", method, err)
}
