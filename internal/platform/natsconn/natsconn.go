// Package natsconn opens NATS connections with a bounded reconnect policy
// and logs connection state changes.
package natsconn

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	DefaultMaxReconnects = 5
	DefaultReconnectWait = 2 * time.Second
)

// Options configures the connection. An empty URL disables NATS.
type Options struct {
	URL           string
	Name          string // client name shown in server monitoring
	MaxReconnects int
	ReconnectWait time.Duration
	Logger        *zap.Logger
}

// Enabled reports whether a NATS URL is configured.
func Enabled(opts Options) bool {
	return strings.TrimSpace(opts.URL) != ""
}

func (o Options) withDefaults() Options {
	o.URL = strings.TrimSpace(o.URL)
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = DefaultMaxReconnects
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = DefaultReconnectWait
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Connect dials opts.URL once; a failed first connect is returned so the
// caller can fail fast.
func Connect(opts Options) (*nats.Conn, error) {
	opts = opts.withDefaults()
	if opts.URL == "" {
		return nil, fmt.Errorf("nats connect: empty url")
	}
	log := opts.Logger

	natsOpts := []nats.Option{
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrlRedacted()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("nats connection closed")
		}),
	}
	if opts.Name != "" {
		natsOpts = append(natsOpts, nats.Name(opts.Name))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}
