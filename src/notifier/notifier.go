// Package notifier hosts the push-notification collaborator: an actor
// mapping session addresses to listener tokens and relaying notifications
// to the delivery broker. Delivery is best-effort; a failed publish drops
// the registration and informs the session.
package notifier

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/messages"
	"github.com/itay-sho/co-buddies-server/src/rabbitmq"
)

// PushNotificationExchange is the fanout exchange third-party delivery
// workers consume from.
const PushNotificationExchange = "push_notifications"

// pushNotification is the body handed to the delivery workers.
type pushNotification struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Actor struct {
	bus       *bus.Bus
	mailbox   <-chan any
	publisher rabbitmq.Publisher

	// listeners maps session addresses to their registered tokens.
	listeners map[bus.Address]string
}

// New registers the notifier's mailbox on the bus.
func New(b *bus.Bus, publisher rabbitmq.Publisher) (*Actor, error) {
	mailbox, err := b.Register(messages.NotifierAddr, 0)
	if err != nil {
		return nil, err
	}
	return &Actor{
		bus:       b,
		mailbox:   mailbox,
		publisher: publisher,
		listeners: make(map[bus.Address]string),
	}, nil
}

// Run drains the mailbox until ctx is cancelled.
func (a *Actor) Run(ctx context.Context) {
	slog.Info("notifier started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("notifier stopped")
			return
		case msg := <-a.mailbox:
			a.handle(msg)
		}
	}
}

func (a *Actor) handle(msg any) {
	switch cmd := msg.(type) {
	case messages.RegisterPNListener:
		a.listeners[cmd.Session] = cmd.Token
		slog.Debug("push listener registered", "session", cmd.Session)
	case messages.UnregisterPNListener:
		delete(a.listeners, cmd.Session)
		slog.Debug("push listener unregistered", "session", cmd.Session)
	case messages.Notify:
		a.handleNotify(cmd)
	default:
		slog.Warn("notifier received unexpected message", "message", msg)
	}
}

func (a *Actor) handleNotify(cmd messages.Notify) {
	token, ok := a.listeners[cmd.Session]
	if !ok {
		return
	}

	body, err := json.Marshal(pushNotification{
		Token: token,
		Title: cmd.Title,
		Body:  cmd.Body,
	})
	if err != nil {
		slog.Error("failed to marshal push notification", "error", err)
		return
	}

	if err := a.publisher.Publish(PushNotificationExchange, body); err != nil {
		// Degrade to "no push": drop the registration and let the session
		// clear its local flag.
		slog.Warn("push notification delivery failed, unregistering listener",
			"session", cmd.Session, "error", err)
		delete(a.listeners, cmd.Session)
		if sendErr := a.bus.Send(cmd.Session, messages.PNChannelRemoved{}); sendErr != nil {
			slog.Warn("notifier send failed", "session", cmd.Session, "error", sendErr)
		}
	}
}
