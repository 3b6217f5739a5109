package realtime

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/meruscrap/pimapos/internal/logger"
	"go.uber.org/zap"
)

const (
	// eventBufferSize bounds per-subscription delivery buffers. A slow
	// consumer drops events rather than stalling the read loop; the next
	// refresh reconciles from the store.
	eventBufferSize = 256

	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = 60 * time.Second
)

// subscribeFrame tells the realtime endpoint which channels to stream.
type subscribeFrame struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
	Token    string   `json:"token,omitempty"`
}

// WebsocketFeed streams the backing service's change envelopes over one
// websocket connection and demultiplexes them to per-channel subscribers.
// Reconnects with exponential backoff; subscriptions survive reconnects.
type WebsocketFeed struct {
	url   string
	token string

	mu   sync.RWMutex
	subs map[string][]chan RawEvent

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// NewWebsocketFeed creates a feed for the given realtime endpoint URL.
func NewWebsocketFeed(url, token string) *WebsocketFeed {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebsocketFeed{
		url:    url,
		token:  token,
		subs:   make(map[string][]chan RawEvent),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers interest in a channel. The connection is established
// lazily on the first subscription.
func (f *WebsocketFeed) Subscribe(channel string) (<-chan RawEvent, func(), error) {
	events := make(chan RawEvent, eventBufferSize)

	f.mu.Lock()
	f.subs[channel] = append(f.subs[channel], events)
	if !f.started {
		f.started = true
		f.wg.Add(1)
		go f.run()
	}
	f.mu.Unlock()

	unsub := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		chans := f.subs[channel]
		for i, ch := range chans {
			if ch == events {
				f.subs[channel] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return events, unsub, nil
}

// Close tears down the connection and all subscriptions.
func (f *WebsocketFeed) Close() {
	f.cancel()
	f.wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	for channel, chans := range f.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(f.subs, channel)
	}
}

// run owns the connection lifecycle: dial, subscribe, read until failure,
// back off, repeat.
func (f *WebsocketFeed) run() {
	defer f.wg.Done()

	attempt := 0
	for {
		if f.ctx.Err() != nil {
			return
		}

		conn, err := f.dial()
		if err != nil {
			attempt++
			delay := backoff(attempt)
			logger.Log.Warn("Realtime feed dial failed",
				zap.String("url", f.url),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
			select {
			case <-time.After(delay):
				continue
			case <-f.ctx.Done():
				return
			}
		}

		attempt = 0
		logger.Log.Info("Realtime feed connected", zap.String("url", f.url))
		f.readLoop(conn)
	}
}

func (f *WebsocketFeed) dial() (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(f.ctx, 15*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, f.url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(512 * 1024)

	if err := wsjson.Write(dialCtx, conn, subscribeFrame{
		Action:   "subscribe",
		Channels: Channels,
		Token:    f.token,
	}); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil, err
	}
	return conn, nil
}

func (f *WebsocketFeed) readLoop(conn *websocket.Conn) {
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var raw RawEvent
		if err := wsjson.Read(f.ctx, conn, &raw); err != nil {
			if f.ctx.Err() == nil {
				logger.Log.Warn("Realtime feed read failed, reconnecting", zap.Error(err))
			}
			return
		}
		f.deliver(raw)
	}
}

func (f *WebsocketFeed) deliver(raw RawEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subs[raw.Channel] {
		select {
		case ch <- raw:
		default:
			logger.Log.Warn("Realtime subscriber buffer full, dropping event",
				logger.WithChannel(raw.Channel))
		}
	}
}

func backoff(attempt int) time.Duration {
	delay := time.Duration(float64(reconnectBaseDelay) * math.Pow(2, float64(attempt-1)))
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	return delay
}
