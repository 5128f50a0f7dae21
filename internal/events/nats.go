package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"docservice/internal/config"
)

// jetStream is the subset of nats.JetStreamContext used for publishing.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATS publishes events to a JetStream stream. Subjects are
// "<prefix>.<type>", for example "documents.created".
type NATS struct {
	conn   *nats.Conn
	js     jetStream
	prefix string
}

// NewNATS connects to cfg.URL, and creates the stream when it is missing.
func NewNATS(cfg config.NATSConfig, logger *slog.Logger) (*NATS, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	log := logger.With("component", "events")
	conn, err := nats.Connect(cfg.URL,
		nats.Name("docservice"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			conn.Close()
			return nil, fmt.Errorf("stream info %s: %w", cfg.Stream, err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.SubjectPrefix + ".*"},
			Storage:  nats.FileStorage,
			MaxAge:   30 * 24 * time.Hour,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("add stream %s: %w", cfg.Stream, err)
		}
		log.Info("nats stream created", "stream", cfg.Stream)
	}

	return &NATS{conn: conn, js: js, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject an event of type t is published on.
func (n *NATS) Subject(t Type) string {
	return n.prefix + "." + string(t)
}

// Publish sends e with its ID as the JetStream message id, so redelivery of
// the same event is deduplicated by the server.
func (n *NATS) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := n.js.Publish(n.Subject(e.Type), data, nats.MsgId(e.ID), nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", n.Subject(e.Type), err)
	}
	return nil
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
