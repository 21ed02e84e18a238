// Package dhan implements the feed ports against the DhanHQ v2 live feed.
package dhan

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tickalert/internal/application/port"
)

// Request codes defined by the v2 live feed.
const (
	requestSubscribe  = 15
	requestDisconnect = 12
)

type Credentials struct {
	ClientID    string
	AccessToken string
}

// Instrument identifies one subscribable security. Field names follow the
// feed's subscription packet schema.
type Instrument struct {
	ExchangeSegment string `json:"ExchangeSegment"` // e.g. "NSE_EQ"
	SecurityID      string `json:"SecurityId"`
}

type subscribePacket struct {
	RequestCode     int          `json:"RequestCode"`
	InstrumentCount int          `json:"InstrumentCount"`
	InstrumentList  []Instrument `json:"InstrumentList"`
}

type disconnectPacket struct {
	RequestCode int `json:"RequestCode"`
}

// Feed dials authenticated sessions against the live feed endpoint.
type Feed struct {
	wsURL       string // e.g. wss://api-feed.dhan.co
	creds       Credentials
	instruments []Instrument
}

func NewFeed(wsURL string, creds Credentials, instruments []Instrument) *Feed {
	return &Feed{
		wsURL:       strings.TrimSpace(wsURL),
		creds:       creds,
		instruments: instruments,
	}
}

func (f *Feed) Name() string { return "dhan" }

func (f *Feed) Dial(ctx context.Context) (port.Session, error) {
	wsURL, err := buildFeedURL(f.wsURL, f.creds)
	if err != nil {
		return nil, err
	}
	if len(f.instruments) == 0 {
		return nil, errors.New("no instruments to subscribe")
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(cctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(newSubscribePacket(f.instruments)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	log.Info().Str("feed", f.Name()).Int("instruments", len(f.instruments)).Msg("subscribed")

	return &session{conn: conn}, nil
}

func newSubscribePacket(ins []Instrument) subscribePacket {
	return subscribePacket{
		RequestCode:     requestSubscribe,
		InstrumentCount: len(ins),
		InstrumentList:  ins,
	}
}

// buildFeedURL appends the v2 auth query string to the feed endpoint.
func buildFeedURL(base string, creds Credentials) (string, error) {
	if base == "" {
		return "", errors.New("feed ws_url empty")
	}
	if creds.ClientID == "" || creds.AccessToken == "" {
		return "", errors.New("feed credentials empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("version", "2")
	q.Set("token", creds.AccessToken)
	q.Set("clientId", creds.ClientID)
	q.Set("authType", "2")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type session struct {
	conn *websocket.Conn
}

func (s *session) Run(ctx context.Context, onMessage func(raw []byte)) error {
	conn := s.conn
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			onMessage(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

func (s *session) Close() error {
	// Best-effort disconnect request before dropping the socket.
	_ = s.conn.WriteJSON(disconnectPacket{RequestCode: requestDisconnect})
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
	return s.conn.Close()
}
