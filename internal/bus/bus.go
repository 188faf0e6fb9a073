package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
)

// #region subjects
const (
	// StreamProposals holds proposals published by the worker agents,
	// one subject per proposed_action.
	StreamProposals = "SWARM_PROPOSALS"
	// StreamActions holds approved actions awaiting the executor.
	StreamActions = "SWARM_ACTIONS"
	// StreamRejections holds policy and epoch rejections.
	StreamRejections = "SWARM_REJECTIONS"
	// StreamJobs holds next-stage triggers for the worker agents.
	StreamJobs = "SWARM_JOBS"

	SubjectProposalPrefix  = "swarm.proposals."
	SubjectActionPrefix    = "swarm.actions."
	SubjectRejectionPrefix = "swarm.rejections."
	SubjectJobPrefix       = "swarm.jobs."

	// fetchWait bounds every consumer fetch; no unbounded blocking.
	fetchWait = 2 * time.Second
)

// ProposalSubject returns the subject for a proposed_action.
func ProposalSubject(proposedAction string) string {
	return SubjectProposalPrefix + proposedAction
}

// ActionSubject returns the subject for an action type.
func ActionSubject(actionType string) string {
	return SubjectActionPrefix + actionType
}

// RejectionSubject returns the subject for a rejected proposal.
func RejectionSubject(proposalID string) string {
	return SubjectRejectionPrefix + proposalID
}

// JobSubject returns the next-stage trigger subject for a pipeline node.
func JobSubject(node string) string {
	return SubjectJobPrefix + node
}

// #endregion subjects

// #region publisher
// Publisher is the narrow publish contract components depend on, so tests
// can substitute an in-memory fake.
type Publisher interface {
	Publish(subject string, v any) error
}

// #endregion publisher

// #region conn
// Conn wraps a NATS connection with JetStream enabled.
type Conn struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// Connect dials the NATS server, retrying with exponential backoff so the
// governor can start before the bus is up.
func Connect(url, name string) (*Conn, error) {
	var nc *nats.Conn
	op := func() error {
		var err error
		nc, err = nats.Connect(url, nats.Name(name))
		return err
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8)); err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Conn{nc: nc, js: js}, nil
}

// Close drains the connection, letting in-flight handlers finish.
func (c *Conn) Close() error {
	return c.nc.Drain()
}

// #endregion conn

// #region streams
// EnsureStreams creates the governor streams if they don't already exist.
// Called once at process startup.
func (c *Conn) EnsureStreams() error {
	streams := []struct {
		name    string
		subject string
	}{
		{StreamProposals, SubjectProposalPrefix + ">"},
		{StreamActions, SubjectActionPrefix + ">"},
		{StreamRejections, SubjectRejectionPrefix + ">"},
		{StreamJobs, SubjectJobPrefix + ">"},
	}

	for _, s := range streams {
		if _, err := c.js.StreamInfo(s.name); err == nil {
			continue
		}
		_, err := c.js.AddStream(&nats.StreamConfig{
			Name:     s.name,
			Subjects: []string{s.subject},
			Storage:  nats.FileStorage,
			MaxMsgs:  10000,
			MaxBytes: 100 << 20,
		})
		if err != nil {
			return fmt.Errorf("create %s stream: %w", s.name, err)
		}
	}
	return nil
}

// #endregion streams

// #region publish
// Publish JSON-encodes v onto subject through JetStream.
func (c *Conn) Publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if _, err := c.js.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// #endregion publish

// #region consume
// Consume runs a durable pull consumer until ctx is cancelled. Delivery is
// at-least-once: handlers must be idempotent or rely on the epoch check.
// Handler errors are logged and the message acked; a single bad message must
// not crash the process.
func (c *Conn) Consume(ctx context.Context, stream, subject, durable string, handler func(data []byte) error) error {
	sub, err := c.js.PullSubscribe(subject, durable, nats.BindStream(stream))
	if err != nil {
		return fmt.Errorf("subscribe %s/%s: %w", stream, subject, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(fetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[BUS] fetch %s: %v", subject, err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			if err := handler(m.Data); err != nil {
				log.Printf("[BUS] handler error on %s: %v", m.Subject, err)
			}
			if err := m.Ack(); err != nil {
				log.Printf("[BUS] ack %s: %v", m.Subject, err)
			}
		}
	}
}

// #endregion consume
