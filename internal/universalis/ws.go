package universalis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ffxivarb/gilarb/internal/domain"
)

const (
	// reconnectDelay is the fixed wait between reconnection attempts.
	// Unlike the bulk REST client there is no backoff growth: the feed
	// drops connections routinely and recovers fast.
	reconnectDelay = 5 * time.Second

	handshakeTimeout = 15 * time.Second
	writeWait        = 10 * time.Second
)

// IngestorConfig holds construction parameters for the stream ingestor.
type IngestorConfig struct {
	// Addr is the websocket endpoint, e.g. "wss://universalis.app/api/ws".
	Addr string
	// Worlds is the subscription universe; one sales and one listings
	// channel is subscribed per world.
	Worlds []domain.WorldID
	// Out receives every decoded event. The ingestor is the only
	// producer for the lifetime of the process.
	Out chan<- domain.Event
	// ReconnectDelay overrides the fixed reconnect wait; zero keeps the
	// default. Tests use this to avoid wall-clock waits.
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Ingestor maintains a long-lived websocket subscription to the trade
// and listing channels of every configured world, decoding BSON frames
// into typed events. On connection loss it waits a fixed delay and
// reconnects until the context is cancelled.
type Ingestor struct {
	addr           string
	worlds         []domain.WorldID
	out            chan<- domain.Event
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	logger         *slog.Logger
}

// NewIngestor creates an Ingestor from the given configuration.
func NewIngestor(cfg IngestorConfig) *Ingestor {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = reconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		addr:   cfg.Addr,
		worlds: cfg.Worlds,
		out:    cfg.Out,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		reconnectDelay: delay,
		logger:         logger.With(slog.String("component", "ingestor")),
	}
}

// Run connects, subscribes, and pumps events until ctx is cancelled.
// Every connection failure transitions back through a fixed-delay wait
// before the next attempt.
func (ing *Ingestor) Run(ctx context.Context) error {
	ing.logger.Info("stream ingestor starting",
		slog.String("addr", ing.addr),
		slog.Int("worlds", len(ing.worlds)),
	)
	defer ing.logger.Info("stream ingestor stopped")

	for {
		err := ing.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ing.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", ing.reconnectDelay),
		)

		timer := time.NewTimer(ing.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection lifetime: dial, subscribe, read until the
// connection drops or ctx is cancelled. A watcher goroutine closes the
// connection as soon as ctx is done so the blocking read returns
// promptly.
func (ing *Ingestor) session(ctx context.Context) error {
	conn, _, err := ing.dialer.DialContext(ctx, ing.addr, nil)
	if err != nil {
		return fmt.Errorf("universalis/ws: connect: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := ing.subscribe(conn); err != nil {
		return err
	}
	ing.logger.Info("subscribed to sale and listing channels",
		slog.Int("channels", 2*len(ing.worlds)),
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("universalis/ws: %w: %v", domain.ErrWSDisconnect, err)
		}

		ev, err := decodeFrame(data)
		if err != nil {
			// Malformed or unrecognized frames never kill the stream.
			ing.logger.Warn("dropping frame", slog.String("error", err.Error()))
			continue
		}

		select {
		case ing.out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// subscribe sends one subscription command per (world, channel) pair.
func (ing *Ingestor) subscribe(conn *websocket.Conn) error {
	for _, world := range ing.worlds {
		for _, kind := range []string{"sales", "listings"} {
			cmd := subscribeCommand{
				Event:   "subscribe",
				Channel: fmt.Sprintf("%s/add{world=%d}", kind, world),
			}
			data, err := bson.Marshal(cmd)
			if err != nil {
				return fmt.Errorf("universalis/ws: marshal subscribe: %w", err)
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return fmt.Errorf("universalis/ws: subscribe %s: %w", cmd.Channel, err)
			}
		}
	}
	return nil
}

// decodeFrame decodes one inbound BSON frame into a typed event. Frames
// tagged with an unrecognized channel are reported as malformed.
func decodeFrame(data []byte) (domain.Event, error) {
	var env frameEnvelope
	if err := bson.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	switch env.Event {
	case "sales/add":
		var frame saleFrameBSON
		if err := bson.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("%w: sales frame: %v", domain.ErrMalformedMessage, err)
		}
		return frame.toDomain(), nil
	case "listings/add":
		var frame listingFrameBSON
		if err := bson.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("%w: listings frame: %v", domain.ErrMalformedMessage, err)
		}
		return frame.toDomain(), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized channel %q", domain.ErrMalformedMessage, env.Event)
	}
}
