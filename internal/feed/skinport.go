package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"skinport-sniper/internal/market"
)

const (
	defaultFeedURL           = "wss://skinport.com/socket.io/?EIO=4&transport=websocket"
	defaultQueueSize         = 256
	defaultReconnectDelay    = 5 * time.Second
	defaultMaxReconnectDelay = 2 * time.Minute
	defaultHandshakeTimeout  = 10 * time.Second
	defaultWriteTimeout      = 5 * time.Second
	defaultReadLimit         = 4 << 20

	saleFeedEvent     = "saleFeed"
	saleFeedJoinEvent = "saleFeedJoin"
)

// ErrServerDisconnect is returned for a session the server closed on purpose.
var ErrServerDisconnect = errors.New("feed server closed the session")

// SkinportOptions parameterise the Skinport sale feed subscriber.
type SkinportOptions struct {
	URL               string
	AppID             int
	Currency          string
	Locale            string
	Parser            string
	QueueSize         int
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HandshakeTimeout  time.Duration
}

// Skinport subscribes to the Skinport sale feed over Socket.IO.
type Skinport struct {
	opts   SkinportOptions
	codec  codec
	dialer websocket.Dialer
	logger zerolog.Logger
}

// NewSkinport validates options and builds the subscriber.
func NewSkinport(opts SkinportOptions, logger zerolog.Logger) (*Skinport, error) {
	c, err := newCodec(strings.ToLower(strings.TrimSpace(opts.Parser)))
	if err != nil {
		return nil, err
	}
	if opts.URL == "" {
		opts.URL = defaultFeedURL
	}
	if opts.AppID == 0 {
		opts.AppID = 730
	}
	if opts.Currency == "" {
		opts.Currency = "CAD"
	}
	if opts.Locale == "" {
		opts.Locale = "en"
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxReconnectDelay < opts.ReconnectDelay {
		opts.MaxReconnectDelay = defaultMaxReconnectDelay
		if opts.MaxReconnectDelay < opts.ReconnectDelay {
			opts.MaxReconnectDelay = opts.ReconnectDelay
		}
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}

	return &Skinport{
		opts:  opts,
		codec: c,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: logger.With().Str("component", "skinport_feed").Logger(),
	}, nil
}

// Subscribe keeps a feed session open, reconnecting with backoff, until ctx is done.
// handler runs on one worker goroutine fed by a bounded queue. Pushes that arrive
// while the queue is full are dropped.
func (s *Skinport) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("feed handler is required")
	}

	queue := make(chan market.Batch, s.opts.QueueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case batch := <-queue:
				handler(ctx, batch)
			}
		}
	}()
	defer wg.Wait()

	delay := s.opts.ReconnectDelay
	for {
		started := time.Now()
		err := s.session(ctx, queue)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) > s.opts.MaxReconnectDelay {
			delay = s.opts.ReconnectDelay
		}
		s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("feed session ended, reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > s.opts.MaxReconnectDelay {
			delay = s.opts.MaxReconnectDelay
		}
	}
}

type engineHandshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

func (s *Skinport) session(ctx context.Context, queue chan<- market.Batch) error {
	s.logger.Info().Str("url", s.opts.URL).Str("parser", s.parserName()).Msg("connecting to sale feed")

	conn, resp, err := s.dialer.DialContext(ctx, s.opts.URL, make(http.Header))
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial feed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(defaultReadLimit)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = conn.Close()
		case <-done:
		}
	}()

	hs, err := s.readHandshake(conn)
	if err != nil {
		return err
	}
	liveness := time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond

	if err := s.send(conn, sioPacket{Type: sioConnect, Nsp: "/"}); err != nil {
		return fmt.Errorf("connect namespace: %w", err)
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(liveness)); err != nil {
			return err
		}
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}

		if s.codec.carriesPacket(messageType, payload) {
			if err := s.handlePacket(conn, messageType, payload, queue); err != nil {
				return err
			}
			continue
		}

		if messageType != websocket.TextMessage || len(payload) == 0 {
			continue
		}
		switch payload[0] {
		case enginePing:
			if err := s.write(conn, websocket.TextMessage, []byte{enginePong}); err != nil {
				return fmt.Errorf("answer ping: %w", err)
			}
		case engineClose:
			return ErrServerDisconnect
		case enginePong, engineNoop, engineOpen:
		default:
			s.logger.Debug().Str("frame", truncate(payload, 64)).Msg("ignoring unexpected frame")
		}
	}
}

func (s *Skinport) readHandshake(conn *websocket.Conn) (engineHandshake, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.opts.HandshakeTimeout)); err != nil {
		return engineHandshake{}, err
	}
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		return engineHandshake{}, fmt.Errorf("read handshake: %w", err)
	}
	if messageType != websocket.TextMessage || len(payload) == 0 || payload[0] != engineOpen {
		return engineHandshake{}, fmt.Errorf("unexpected handshake frame %q", truncate(payload, 64))
	}

	var hs engineHandshake
	if err := json.Unmarshal(payload[1:], &hs); err != nil {
		return engineHandshake{}, fmt.Errorf("decode handshake: %w", err)
	}
	if hs.PingInterval <= 0 {
		hs.PingInterval = 25000
	}
	if hs.PingTimeout <= 0 {
		hs.PingTimeout = 20000
	}
	return hs, nil
}

func (s *Skinport) handlePacket(conn *websocket.Conn, messageType int, payload []byte, queue chan<- market.Batch) error {
	p, err := s.codec.decode(messageType, payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable packet")
		return nil
	}

	switch p.Type {
	case sioConnect:
		join := map[string]any{
			"currency": s.opts.Currency,
			"locale":   s.opts.Locale,
			"appid":    s.opts.AppID,
		}
		if err := s.send(conn, sioPacket{Type: sioEvent, Nsp: "/", Data: []any{saleFeedJoinEvent, join}}); err != nil {
			return fmt.Errorf("join sale feed: %w", err)
		}
		s.logger.Info().Str("currency", s.opts.Currency).Int("app_id", s.opts.AppID).Msg("joined sale feed")
	case sioConnectError:
		return fmt.Errorf("namespace connect refused: %v", p.Data)
	case sioDisconnect:
		return ErrServerDisconnect
	case sioEvent:
		name, arg, ok := p.event()
		if !ok || name != saleFeedEvent {
			return nil
		}
		batch, err := toBatch(arg)
		if err != nil {
			s.logger.Warn().Err(err).Msg("dropping malformed sale feed push")
			return nil
		}
		select {
		case queue <- batch:
		default:
			s.logger.Warn().Int("sales", len(batch.Sales)).Msg("batch queue full, dropping push")
		}
	}
	return nil
}

// toBatch re-encodes a decoded event argument as JSON so records keep their raw form.
func toBatch(arg any) (market.Batch, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return market.Batch{}, err
	}
	var batch market.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return market.Batch{}, err
	}
	return batch, nil
}

func (s *Skinport) send(conn *websocket.Conn, p sioPacket) error {
	messageType, payload, err := s.codec.encode(p)
	if err != nil {
		return err
	}
	return s.write(conn, messageType, payload)
}

func (s *Skinport) write(conn *websocket.Conn, messageType int, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, payload)
}

func (s *Skinport) parserName() string {
	if _, ok := s.codec.(jsonCodec); ok {
		return ParserJSON
	}
	return ParserMsgpack
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ Subscriber = (*Skinport)(nil)
