package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Engine.IO v4 packet types (first byte of a text frame).
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO v5 packet types.
const (
	sioConnect      = 0
	sioDisconnect   = 1
	sioEvent        = 2
	sioAck          = 3
	sioConnectError = 4
)

const (
	ParserMsgpack = "msgpack"
	ParserJSON    = "json"
)

type sioPacket struct {
	Type int    `msgpack:"type"`
	Nsp  string `msgpack:"nsp"`
	Data any    `msgpack:"data,omitempty"`
	ID   *int   `msgpack:"id,omitempty"`
}

// event splits an EVENT payload into its name and first argument.
func (p sioPacket) event() (string, any, bool) {
	args, ok := p.Data.([]any)
	if !ok || len(args) == 0 {
		return "", nil, false
	}
	name, ok := args[0].(string)
	if !ok {
		return "", nil, false
	}
	if len(args) < 2 {
		return name, nil, true
	}
	return name, args[1], true
}

// codec frames Socket.IO packets inside Engine.IO messages.
type codec interface {
	encode(p sioPacket) (messageType int, payload []byte, err error)
	// decode receives a frame that is known to carry a Socket.IO packet.
	decode(messageType int, payload []byte) (sioPacket, error)
	// carriesPacket reports whether a frame is a Socket.IO packet for this parser.
	carriesPacket(messageType int, payload []byte) bool
}

func newCodec(parser string) (codec, error) {
	switch parser {
	case "", ParserMsgpack:
		return msgpackCodec{}, nil
	case ParserJSON:
		return jsonCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported socket.io parser %q", parser)
	}
}

// jsonCodec speaks the default Socket.IO text encoding: "4" + type + [nsp ","] + [id] + json.
type jsonCodec struct{}

func (jsonCodec) encode(p sioPacket) (int, []byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(engineMessage)
	buf.WriteString(strconv.Itoa(p.Type))
	if p.Nsp != "" && p.Nsp != "/" {
		buf.WriteString(p.Nsp)
		buf.WriteByte(',')
	}
	if p.ID != nil {
		buf.WriteString(strconv.Itoa(*p.ID))
	}
	if p.Data != nil {
		data, err := json.Marshal(p.Data)
		if err != nil {
			return 0, nil, err
		}
		buf.Write(data)
	}
	return websocket.TextMessage, buf.Bytes(), nil
}

func (jsonCodec) carriesPacket(messageType int, payload []byte) bool {
	return messageType == websocket.TextMessage && len(payload) > 0 && payload[0] == engineMessage
}

func (jsonCodec) decode(_ int, payload []byte) (sioPacket, error) {
	rest := payload[1:]
	if len(rest) == 0 || rest[0] < '0' || rest[0] > '6' {
		return sioPacket{}, errors.New("socket.io packet without type")
	}

	p := sioPacket{Type: int(rest[0] - '0'), Nsp: "/"}
	rest = rest[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Nsp = string(rest)
			return p, nil
		}
		p.Nsp = string(rest[:end])
		rest = rest[end+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return sioPacket{}, fmt.Errorf("socket.io ack id: %w", err)
		}
		p.ID = &id
		rest = rest[digits:]
	}

	if len(rest) > 0 {
		dec := json.NewDecoder(bytes.NewReader(rest))
		dec.UseNumber()
		if err := dec.Decode(&p.Data); err != nil {
			return sioPacket{}, fmt.Errorf("socket.io payload: %w", err)
		}
	}
	return p, nil
}

// msgpackCodec matches socket.io-msgpack-parser: each packet is one binary frame
// holding the msgpack-encoded packet object.
type msgpackCodec struct{}

func (msgpackCodec) encode(p sioPacket) (int, []byte, error) {
	if p.Nsp == "" {
		p.Nsp = "/"
	}
	data, err := msgpack.Marshal(p)
	if err != nil {
		return 0, nil, err
	}
	return websocket.BinaryMessage, data, nil
}

func (msgpackCodec) carriesPacket(messageType int, _ []byte) bool {
	return messageType == websocket.BinaryMessage
}

func (msgpackCodec) decode(_ int, payload []byte) (sioPacket, error) {
	var p sioPacket
	if err := msgpack.Unmarshal(payload, &p); err != nil {
		return sioPacket{}, fmt.Errorf("socket.io msgpack packet: %w", err)
	}
	if p.Nsp == "" {
		p.Nsp = "/"
	}
	return p, nil
}
