package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skinport-sniper/internal/market"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

type fakeFeed struct {
	t        *testing.T
	codec    codec
	sessions atomic.Int32
	// dropFirst closes the first session right after the handshake.
	dropFirst bool
	joined    chan map[string]any
	ponged    chan struct{}
}

func newFakeFeed(t *testing.T, parser string) *fakeFeed {
	c, err := newCodec(parser)
	require.NoError(t, err)
	return &fakeFeed{
		t:      t,
		codec:  c,
		joined: make(chan map[string]any, 4),
		ponged: make(chan struct{}, 4),
	}
}

func (f *fakeFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	n := f.sessions.Add(1)

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`))
	if f.dropFirst && n == 1 {
		_ = conn.WriteMessage(websocket.TextMessage, []byte{engineClose})
		return
	}

	// namespace connect
	p, ok := f.readPacket(conn)
	if !ok || p.Type != sioConnect {
		return
	}
	f.send(conn, sioPacket{Type: sioConnect, Nsp: "/", Data: map[string]any{"sid": "nsp"}})

	// saleFeedJoin
	p, ok = f.readPacket(conn)
	if !ok {
		return
	}
	name, arg, _ := p.event()
	if name == saleFeedJoinEvent {
		join, _ := arg.(map[string]any)
		f.joined <- join
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte{enginePing})
	for {
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.TextMessage && len(payload) == 1 && payload[0] == enginePong {
			f.ponged <- struct{}{}
			break
		}
	}

	f.send(conn, sioPacket{Type: sioEvent, Nsp: "/", Data: []any{"unrelated", map[string]any{}}})
	f.send(conn, sioPacket{Type: sioEvent, Nsp: "/", Data: []any{saleFeedEvent, map[string]any{
		"eventType": "sold",
		"sales": []any{
			map[string]any{
				"marketHashName": "AK-47 | Redline (Field-Tested)",
				"salePrice":      15000,
				"suggestedPrice": 20000,
				"wear":           0.2512,
				"pattern":        412,
				"link":           "ak-47-redline-field-tested/1234",
			},
		},
	}}})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *fakeFeed) readPacket(conn *websocket.Conn) (sioPacket, bool) {
	for {
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			return sioPacket{}, false
		}
		if !f.codec.carriesPacket(mt, payload) {
			continue
		}
		p, err := f.codec.decode(mt, payload)
		if err != nil {
			f.t.Errorf("client sent undecodable packet: %v", err)
			return sioPacket{}, false
		}
		return p, true
	}
}

func (f *fakeFeed) send(conn *websocket.Conn, p sioPacket) {
	mt, payload, err := f.codec.encode(p)
	if err != nil {
		f.t.Errorf("encode packet: %v", err)
		return
	}
	_ = conn.WriteMessage(mt, payload)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSkinportSubscribeDeliversSaleFeed(t *testing.T) {
	for _, parser := range []string{ParserMsgpack, ParserJSON} {
		t.Run(parser, func(t *testing.T) {
			fake := newFakeFeed(t, parser)
			srv := httptest.NewServer(fake)
			defer srv.Close()

			sub, err := NewSkinport(SkinportOptions{
				URL:      wsURL(srv),
				Parser:   parser,
				Currency: "CAD",
			}, zerolog.Nop())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			batches := make(chan market.Batch, 1)
			errc := make(chan error, 1)
			go func() {
				errc <- sub.Subscribe(ctx, func(_ context.Context, b market.Batch) { batches <- b })
			}()

			select {
			case join := <-fake.joined:
				assert.Equal(t, "CAD", join["currency"])
				assert.Equal(t, "en", join["locale"])
				assert.NotNil(t, join["appid"])
			case <-time.After(5 * time.Second):
				t.Fatal("client never joined the sale feed")
			}

			select {
			case <-fake.ponged:
			case <-time.After(5 * time.Second):
				t.Fatal("client never answered ping")
			}

			var batch market.Batch
			select {
			case batch = <-batches:
			case <-time.After(5 * time.Second):
				t.Fatal("no batch delivered")
			}
			assert.Equal(t, "sold", batch.EventType)
			require.Len(t, batch.Sales, 1)

			sale, err := market.ParseSale(batch.Sales[0])
			require.NoError(t, err)
			assert.Equal(t, "AK-47 | Redline (Field-Tested)", sale.MarketHashName)
			assert.Equal(t, int64(15000), sale.SalePrice)
			assert.Equal(t, int64(20000), sale.SuggestedPrice)
			assert.Equal(t, "412", sale.PatternString())

			cancel()
			select {
			case err := <-errc:
				assert.ErrorIs(t, err, context.Canceled)
			case <-time.After(5 * time.Second):
				t.Fatal("Subscribe did not return after cancel")
			}
		})
	}
}

func TestSkinportReconnectsAfterServerClose(t *testing.T) {
	fake := newFakeFeed(t, ParserJSON)
	fake.dropFirst = true
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sub, err := NewSkinport(SkinportOptions{
		URL:               wsURL(srv),
		Parser:            ParserJSON,
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan market.Batch, 1)
	go func() { _ = sub.Subscribe(ctx, func(_ context.Context, b market.Batch) { batches <- b }) }()

	select {
	case <-batches:
	case <-time.After(5 * time.Second):
		t.Fatal("no batch after reconnect")
	}
	assert.GreaterOrEqual(t, fake.sessions.Load(), int32(2))
}

func TestNewSkinportRejectsUnknownParser(t *testing.T) {
	_, err := NewSkinport(SkinportOptions{Parser: "protobuf"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSubscribeRequiresHandler(t *testing.T) {
	sub, err := NewSkinport(SkinportOptions{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, sub.Subscribe(context.Background(), nil))
}
