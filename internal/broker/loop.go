package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const (
	// DefaultAddr is the TCP address the broker listens on
	DefaultAddr = ":44247"

	// DefaultTickInterval is the pause between polling passes
	DefaultTickInterval = 200 * time.Millisecond

	// acceptTimeout bounds the accept check each tick. New connections are
	// rare relative to the tick rate so the check is nearly instantaneous.
	acceptTimeout = 1 * time.Millisecond
)

// Config holds the broker's listener settings
type Config struct {
	Addr         string
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         DefaultAddr,
		TickInterval: DefaultTickInterval,
	}
}

// Loop is the broker's single-threaded polling loop. Each tick it accepts
// any pending connections and then drains every client's inbound messages.
// All state the dispatcher touches is confined to the goroutine running Run,
// so none of it needs locking.
type Loop struct {
	cfg        Config
	listener   *net.TCPListener
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// Listen binds the broker's TCP listener. Run must be called to serve it.
func Listen(cfg Config, dispatcher *Dispatcher, logger *slog.Logger) (*Loop, error) {
	addr, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("resolving listen address: %w", err)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding listener: %w", err)
	}

	return &Loop{
		cfg:        cfg,
		listener:   listener,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Addr returns the bound listen address, useful when configured with port 0
func (l *Loop) Addr() net.Addr {
	return l.listener.Addr()
}

// Run serves the broker loop until the context is cancelled, then notifies
// and closes every client before returning.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("broker listening",
		slog.String("addr", l.Addr().String()),
		slog.Duration("tick_interval", l.cfg.TickInterval))

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()
	defer func() { _ = l.listener.Close() }()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("broker shutting down")
			l.dispatcher.CloseAll()
			return ctx.Err()
		case <-ticker.C:
		}

		l.acceptPending()
		l.dispatcher.DrainAll(ctx)
	}
}

// acceptPending takes every connection waiting on the listener. The short
// deadline turns the blocking accept into a poll.
func (l *Loop) acceptPending() {
	for {
		if err := l.listener.SetDeadline(time.Now().Add(acceptTimeout)); err != nil {
			l.logger.Error("could not set accept deadline", slog.String("error", err.Error()))
			return
		}

		conn, err := l.listener.AcceptTCP()
		if err != nil {
			if !isTimeout(err) {
				l.logger.Warn("accept error", slog.String("error", err.Error()))
			}
			return
		}

		l.dispatcher.AddClient(newNetConn(conn, l.logger))
	}
}
