package dhan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBuildFeedURL(t *testing.T) {
	got, err := buildFeedURL("wss://api-feed.dhan.co", Credentials{ClientID: "C1", AccessToken: "TOK"})
	if err != nil {
		t.Fatalf("buildFeedURL: %v", err)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	q := u.Query()
	for k, want := range map[string]string{
		"version":  "2",
		"token":    "TOK",
		"clientId": "C1",
		"authType": "2",
	} {
		if q.Get(k) != want {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), want)
		}
	}

	if _, err := buildFeedURL("", Credentials{ClientID: "C1", AccessToken: "TOK"}); err == nil {
		t.Error("empty ws_url should be an error")
	}
	if _, err := buildFeedURL("wss://api-feed.dhan.co", Credentials{}); err == nil {
		t.Error("empty credentials should be an error")
	}
}

func TestSubscribePacketShape(t *testing.T) {
	p := newSubscribePacket([]Instrument{{ExchangeSegment: "NSE_EQ", SecurityID: "1333"}})
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"RequestCode":15,"InstrumentCount":1,"InstrumentList":[{"ExchangeSegment":"NSE_EQ","SecurityId":"1333"}]}`
	if string(b) != want {
		t.Errorf("packet = %s, want %s", b, want)
	}
}

func TestDialSubscribesAndRunDeliversFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frame := `{"securityId":"1333","lastTradedPrice":"1725.40"}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("version") != "2" || r.URL.Query().Get("authType") != "2" {
			t.Errorf("missing auth query params: %s", r.URL.RawQuery)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var pkt subscribePacket
		if err := conn.ReadJSON(&pkt); err != nil {
			t.Errorf("read subscribe packet: %v", err)
			return
		}
		if pkt.RequestCode != requestSubscribe || pkt.InstrumentCount != 1 {
			t.Errorf("subscribe packet = %+v", pkt)
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Errorf("write frame: %v", err)
		}
		// Closing ends the client's read loop; Run should then return.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := NewFeed(wsURL, Credentials{ClientID: "C1", AccessToken: "TOK"},
		[]Instrument{{ExchangeSegment: "NSE_EQ", SecurityID: "1333"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := f.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	var got []string
	err = sess.Run(ctx, func(raw []byte) { got = append(got, string(raw)) })
	if err == nil {
		t.Fatal("Run = nil, want the close error that ended the stream")
	}

	if len(got) != 1 || got[0] != frame {
		t.Fatalf("frames = %v, want the one served frame", got)
	}
}

func TestDialRequiresInstruments(t *testing.T) {
	f := NewFeed("wss://api-feed.dhan.co", Credentials{ClientID: "C1", AccessToken: "TOK"}, nil)
	if _, err := f.Dial(context.Background()); err == nil {
		t.Fatal("Dial without instruments = nil, want error")
	}
}
