package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	nats "github.com/nats-io/nats.go"
)

// DefaultSubject is used when none is configured.
const DefaultSubject = "pokeswap.trades"

// natsConn is the subset of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSPublisher publishes trade events as JSON on a subject.
type NATSPublisher struct {
	conn    natsConn
	subject string
}

// NewNATSPublisher wraps a connection. An empty subject falls back to DefaultSubject.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	return newNATSPublisher(conn, subject)
}

func newNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

func (p *NATSPublisher) Publish(ctx context.Context, evt TradeEvent) error {
	if p == nil || p.conn == nil {
		return errors.New("nats connection unavailable")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.conn.FlushWithContext(ctx)
}

// Connect dials NATS, retrying with exponential backoff until ctx ends or
// maxElapsed passes.
func Connect(ctx context.Context, url string, maxElapsed time.Duration) (*nats.Conn, error) {
	if url == "" {
		return nil, errors.New("nats url is empty")
	}
	var conn *nats.Conn
	op := func() error {
		c, err := nats.Connect(url, nats.Name("pokeswap-api"), nats.MaxReconnects(-1))
		if err != nil {
			if errors.Is(err, nats.ErrBadSubject) {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}
