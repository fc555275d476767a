package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject carries completion events.
const DefaultSubject = "pdf2mp3.jobs.completed"

// Publisher is the part of *nats.Conn used to publish events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes completion events as JSON.
type NATSNotifier struct {
	pub     Publisher
	subject string
	log     *slog.Logger
}

// NewNATSNotifier publishes on subject, DefaultSubject when empty.
func NewNATSNotifier(pub Publisher, subject string, logger *slog.Logger) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSNotifier{pub: pub, subject: subject, log: logger.With("component", "notify", "subject", subject)}
}

// Notify publishes ev as JSON. Publish errors are returned, not retried.
func (n *NATSNotifier) Notify(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	n.log.Debug("published completion event", "job_id", ev.JobID)
	return nil
}

// ConnectNATS opens a named connection to url.
func ConnectNATS(url, name string, timeout time.Duration, logger *slog.Logger) (*nats.Conn, error) {
	if url == "" {
		return nil, errors.New("notify: NATS url is required")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to nats: %w", err)
	}
	if logger != nil {
		logger.Info("connected to NATS", slog.String("url", url))
	}
	return conn, nil
}

// CloseNATS drains pending publishes and closes conn.
func CloseNATS(conn *nats.Conn) {
	if conn == nil {
		return
	}
	conn.Drain()
	conn.Close()
}
