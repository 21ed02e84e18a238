// Package telegram delivers alerts through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tickalert/internal/application/port"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	defaultTimeout = 8 * time.Second
)

// MarkdownV2 reserved characters; each must be backslash-escaped in
// message text.
const reservedChars = "_*[]()~`>#+-=|{}.!"

// Escape backslash-escapes Telegram MarkdownV2 reserved characters.
func Escape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(reservedChars, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Client posts formatted alerts to one chat. It implements port.Notifier.
type Client struct {
	apiBase  string
	token    string
	chatID   string
	interval time.Duration // quoted in the message footer
	loc      *time.Location
	http     *http.Client
}

func NewClient(apiBase, token, chatID string, interval time.Duration) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+30*60)
	}
	return &Client{
		apiBase:  strings.TrimRight(apiBase, "/"),
		token:    token,
		chatID:   chatID,
		interval: interval,
		loc:      loc,
		http:     &http.Client{Timeout: defaultTimeout},
	}
}

// Notify formats and posts one alert. A transport failure or non-2xx
// response is an error; the caller decides whether to retry.
func (c *Client) Notify(ctx context.Context, a port.Alert) error {
	form := url.Values{
		"chat_id":    {c.chatID},
		"text":       {c.formatMessage(a)},
		"parse_mode": {"MarkdownV2"},
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	log.Debug().Str("security_id", a.SecurityID).Msg("telegram delivered")
	return nil
}

func (c *Client) formatMessage(a port.Alert) string {
	ts := a.At.In(c.loc).Format("15:04:05") + " IST"

	var sb strings.Builder
	sb.WriteString("*" + Escape("LTP ALERT!") + "* \U0001F514\n")
	sb.WriteString("Time: " + Escape(ts) + "\n\n")
	sb.WriteString("*" + Escape(a.DisplayName) + "*\n")
	sb.WriteString("Latest LTP: ₹ *" + Escape(priceFixed(a)) + "*\n\n")
	footer := fmt.Sprintf("Sent at most once every %d seconds, based on live WebSocket data.",
		int(c.interval/time.Second))
	sb.WriteString("_" + Escape(footer) + "_")
	return sb.String()
}

// priceFixed renders the traded price with exactly two decimals,
// preferring the exact wire string over the parsed float.
func priceFixed(a port.Alert) string {
	if a.PriceStr != "" {
		if d, err := decimal.NewFromString(a.PriceStr); err == nil {
			return d.StringFixed(2)
		}
	}
	return decimal.NewFromFloat(a.PriceNum).StringFixed(2)
}
