// pkg/publish/publisher.go

package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smuckster/fleetcheck/pkg/report"
	"github.com/smuckster/fleetcheck/pkg/scan"
)

// DefaultSubject is the subject prefix results are published under
const DefaultSubject = "fleetcheck.results"

// Conn is the subset of *nats.Conn used by Publisher
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Event is one published host result
type Event struct {
	Type      string          `json:"type"`
	RunID     string          `json:"run_id"`
	Check     string          `json:"check"`
	Timestamp string          `json:"timestamp"`
	Host      report.HostData `json:"host"`
}

// Publisher sends per-host results to NATS
type Publisher struct {
	logger  *slog.Logger
	conn    Conn
	subject string
	runID   string
}

// Connect dials the NATS server at url
func Connect(url, subject, runID string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("fleetcheck"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewPublisher(logger, nc, subject, runID), nil
}

// NewPublisher creates a publisher on an existing connection
func NewPublisher(logger *slog.Logger, conn Conn, subject, runID string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{logger: logger, conn: conn, subject: subject, runID: runID}
}

// Subject returns the subject a check's results are published on
func (p *Publisher) Subject(check string) string {
	return p.subject + "." + sanitizeToken(check)
}

// PublishResults publishes one event per host and flushes. Every host is
// attempted; the first error is returned.
func (p *Publisher) PublishResults(check string, results []scan.HostResult) error {
	subject := p.Subject(check)
	timestamp := time.Now().UTC().Format(time.RFC3339)

	var firstErr error
	for _, result := range results {
		event := Event{
			Type:      "host_result",
			RunID:     p.runID,
			Check:     check,
			Timestamp: timestamp,
			Host:      report.NewHostData(result),
		}

		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		if err := p.conn.Publish(subject, data); err != nil {
			p.logger.Warn("failed to publish result", "host", result.Host, "subject", subject, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to publish result of %s: %w", result.Host, err)
			}
		}
	}

	if err := p.conn.FlushTimeout(5 * time.Second); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	if firstErr == nil {
		p.logger.Debug("published results", "subject", subject, "hosts", len(results))
	}
	return firstErr
}

// Close closes the connection
func (p *Publisher) Close() {
	p.conn.Close()
}

// sanitizeToken makes s usable as one subject token
func sanitizeToken(s string) string {
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
