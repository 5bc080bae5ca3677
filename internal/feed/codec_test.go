package feed

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecDecode(t *testing.T) {
	c := jsonCodec{}

	cases := []struct {
		name    string
		payload string
		typ     int
		nsp     string
		id      *int
		event   string
	}{
		{name: "connect ack", payload: `40{"sid":"x"}`, typ: sioConnect, nsp: "/"},
		{name: "event", payload: `42["saleFeed",{"eventType":"listed","sales":[]}]`, typ: sioEvent, nsp: "/", event: "saleFeed"},
		{name: "namespaced event with ack id", payload: `42/admin,7["ping"]`, typ: sioEvent, nsp: "/admin", id: intPtr(7), event: "ping"},
		{name: "disconnect", payload: `41`, typ: sioDisconnect, nsp: "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, c.carriesPacket(websocket.TextMessage, []byte(tc.payload)))
			p, err := c.decode(websocket.TextMessage, []byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.typ, p.Type)
			assert.Equal(t, tc.nsp, p.Nsp)
			assert.Equal(t, tc.id, p.ID)
			if tc.event != "" {
				name, _, ok := p.event()
				assert.True(t, ok)
				assert.Equal(t, tc.event, name)
			}
		})
	}
}

func TestJSONCodecRejectsGarbage(t *testing.T) {
	c := jsonCodec{}
	_, err := c.decode(websocket.TextMessage, []byte("4"))
	assert.Error(t, err)
	_, err = c.decode(websocket.TextMessage, []byte(`42["saleFeed",`))
	assert.Error(t, err)
	assert.False(t, c.carriesPacket(websocket.TextMessage, []byte("2")))
}

func TestJSONCodecEncodeJoin(t *testing.T) {
	mt, payload, err := jsonCodec{}.encode(sioPacket{Type: sioEvent, Nsp: "/", Data: []any{"saleFeedJoin", map[string]any{"appid": 730}}})
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, `42["saleFeedJoin",{"appid":730}]`, string(payload))
}

func TestMsgpackCodecDecodesEvent(t *testing.T) {
	c := msgpackCodec{}
	mt, payload, err := c.encode(sioPacket{Type: sioEvent, Data: []any{"saleFeed", map[string]any{"eventType": "sold"}}})
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, mt)
	require.True(t, c.carriesPacket(mt, payload))

	p, err := c.decode(mt, payload)
	require.NoError(t, err)
	assert.Equal(t, "/", p.Nsp)
	name, arg, ok := p.event()
	require.True(t, ok)
	assert.Equal(t, "saleFeed", name)

	batch, err := toBatch(arg)
	require.NoError(t, err)
	assert.Equal(t, "sold", batch.EventType)
}

func intPtr(v int) *int { return &v }
