// Package events announces worker outcomes on NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/aoq-factory/internal/catalog"
)

const (
	StreamName    = "AOQ_WORKER"
	streamSubject = "aoq.worker.>"
)

// Outcome is the payload published for every ledger entry.
type Outcome struct {
	Worker   string                     `json:"worker"`
	AnimeID  *int64                     `json:"anime_id"`
	Status   catalog.WorkerResultStatus `json:"status"`
	Inserted []string                   `json:"inserted"`
	At       time.Time                  `json:"at"`
}

// Subject returns the subject outcomes of worker are published on.
func Subject(worker string) string {
	return "aoq.worker." + worker + ".result"
}

// Publisher delivers outcomes. Implementations must be safe for concurrent
// use.
type Publisher interface {
	Publish(ctx context.Context, o Outcome) error
}

// Nop drops every outcome.
type Nop struct{}

func (Nop) Publish(context.Context, Outcome) error { return nil }

// jetStream is the subset of nats.JetStreamContext the publisher uses.
type jetStream interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type JetStreamPublisher struct {
	Log *zap.Logger
	JS  jetStream
}

func NewJetStreamPublisher(log *zap.Logger, nc *nats.Conn) (*JetStreamPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &JetStreamPublisher{Log: log, JS: js}, nil
}

// EnsureStream creates the outcome stream or widens its subjects.
func (p *JetStreamPublisher) EnsureStream(_ context.Context) error {
	info, err := p.JS.StreamInfo(StreamName)
	if err == nil {
		for _, s := range info.Config.Subjects {
			if s == streamSubject {
				return nil
			}
		}
		cfg := info.Config
		cfg.Subjects = append(cfg.Subjects, streamSubject)
		_, err := p.JS.UpdateStream(&cfg)
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = p.JS.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{streamSubject},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	return err
}

func (p *JetStreamPublisher) Publish(ctx context.Context, o Outcome) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	if _, err := p.JS.Publish(Subject(o.Worker), b, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s outcome: %w", o.Worker, err)
	}
	return nil
}
