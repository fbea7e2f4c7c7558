package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/gyan/internal/domain"
)

// publisher is satisfied by *nats.Conn.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes notifications as JSON to
// "<prefix>.<severity>" so other services (SMS, push) can pick them up.
type NATSNotifier struct {
	pub    publisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// natsEvent is the published payload.
type natsEvent struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	VisitorID string    `json:"visitorId,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// ConnectNATS dials url and returns a notifier publishing under prefix.
func ConnectNATS(url, prefix string, logger *slog.Logger) (*NATSNotifier, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("gyan-checkout"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, err
	}
	return NewNATSNotifier(nc, prefix, logger), nc, nil
}

func NewNATSNotifier(pub publisher, prefix string, logger *slog.Logger) *NATSNotifier {
	if prefix == "" {
		prefix = "gyan.notifications"
	}
	return &NATSNotifier{pub: pub, prefix: prefix, logger: logger, now: time.Now}
}

// Show publishes the notification. Publish failures are logged and dropped.
func (n *NATSNotifier) Show(ctx context.Context, message string, severity Severity) {
	payload, err := json.Marshal(natsEvent{
		Message:   message,
		Severity:  severity,
		VisitorID: domain.VisitorFromContext(ctx),
		RequestID: domain.RequestIDFromContext(ctx),
		SentAt:    n.now().UTC(),
	})
	if err != nil {
		n.logger.Warn("failed to encode notification", "error", err)
		return
	}

	subject := n.prefix + "." + string(severity)
	if err := n.pub.Publish(subject, payload); err != nil {
		n.logger.Warn("failed to publish notification", "subject", subject, "error", err)
	}
}
