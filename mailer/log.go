package mailer

import (
	"context"
	"sync"

	auth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/logging"
)

// LogMailer writes messages to the logger instead of sending them. It
// keeps the last messages so development tools can show the verification
// link.
type LogMailer struct {
	logger auth.Logger

	mu   sync.Mutex
	sent []auth.Message
}

var _ auth.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger auth.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg auth.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.Info("email", "to", msg.To, "subject", msg.Subject, "html", msg.HTML)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *LogMailer) Sent() []auth.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]auth.Message, len(m.sent))
	copy(out, m.sent)
	return out
}
