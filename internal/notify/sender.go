package notify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

// Notification is a message addressed to one user or guest.
type Notification struct {
	RecipientID string
	Kind        string
	Title       string
	Body        string
	Data        map[string]any
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

var titleCaser = cases.Title(language.English)

// Title renders a headline in title case, e.g. "new order received" →
// "New Order Received".
func Title(s string) string {
	return titleCaser.String(strings.TrimSpace(s))
}

// InboxSender stores notifications in the in-app inbox table.
type InboxSender struct {
	DB *gorm.DB
}

// Send writes one notifications row.
func (s InboxSender) Send(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.RecipientID) == "" {
		return errors.New("notification without recipient")
	}
	var data datatypes.JSON
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return errors.Wrap(err, "encode notification data")
		}
		data = raw
	}
	return repo.CreateNotification(ctx, s.DB, &domain.Notification{
		RecipientID: n.RecipientID,
		Kind:        n.Kind,
		Title:       n.Title,
		Body:        n.Body,
		Data:        data,
	})
}

// LogSender only logs; it stands in for a push provider.
type LogSender struct{}

// Send logs the notification at info level.
func (LogSender) Send(_ context.Context, n Notification) error {
	log.Info().
		Str("recipient_id", n.RecipientID).
		Str("kind", n.Kind).
		Str("title", n.Title).
		Msg("notification")
	return nil
}

// Fanout delivers to every sender and combines their errors.
type Fanout []Sender

// Send calls each sender in order; one failure does not stop the rest.
func (f Fanout) Send(ctx context.Context, n Notification) error {
	var err error
	for _, s := range f {
		if s == nil {
			continue
		}
		err = errors.CombineErrors(err, s.Send(ctx, n))
	}
	return err
}
