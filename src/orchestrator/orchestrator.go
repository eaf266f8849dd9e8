// Package orchestrator hosts the single-writer actor that owns the
// conversation registry. All membership mutations, broadcast routing and
// conversation closures funnel through its mailbox one command at a time;
// the actor is the lock.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/messages"
	"github.com/itay-sho/co-buddies-server/src/models"
	"github.com/itay-sho/co-buddies-server/src/registry"
)

type Orchestrator struct {
	bus      *bus.Bus
	mailbox  <-chan any
	registry *registry.Registry

	// sessions routes fan-outs: the bus address of each connected user's
	// session. Mutated only by the actor goroutine.
	sessions map[int64]bus.Address
}

// New registers the orchestrator's mailbox on the bus. Run must be called
// to start processing.
func New(b *bus.Bus) (*Orchestrator, error) {
	mailbox, err := b.Register(messages.OrchestratorAddr, 0)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		bus:      b,
		mailbox:  mailbox,
		registry: registry.New(),
		sessions: make(map[int64]bus.Address),
	}, nil
}

// Run drains the mailbox until ctx is cancelled. A failed command logs and
// replies; it never terminates the actor.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("orchestrator started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("orchestrator stopped")
			return
		case msg := <-o.mailbox:
			o.handle(msg)
		}
	}
}

func (o *Orchestrator) handle(msg any) {
	switch m := msg.(type) {
	case messages.Join:
		o.handleJoin(m)
	case messages.UserDisconnect:
		o.handleUserDisconnect(m)
	case messages.Broadcast:
		o.handleBroadcast(m)
	case messages.LobbyAttendees:
		o.handleLobbyAttendees(m)
	default:
		slog.Warn("orchestrator received unexpected message", "message", msg)
	}
}

func (o *Orchestrator) handleJoin(m messages.Join) {
	o.sessions[m.UserID] = m.Session
	closed, evicted := o.registry.Join(m.UserID, m.ConversationID)
	o.finishClosure(closed, evicted)
	slog.Debug("user joined conversation", "user_id", m.UserID, "conversation_id", m.ConversationID)
}

func (o *Orchestrator) handleUserDisconnect(m messages.UserDisconnect) {
	// A reconnect can bind the user to a successor session before the
	// superseded one finishes its teardown; only the currently bound
	// session may unwind the user.
	if current, ok := o.sessions[m.UserID]; !ok || current != m.Session {
		slog.Debug("ignoring disconnect from superseded session",
			"user_id", m.UserID, "session", m.Session)
		return
	}

	// Remaining attendees hear about the departure before the membership
	// is unwound, while the registry still knows the conversation.
	if conversationID, ok := o.registry.Conversation(m.UserID); ok {
		o.fanOut(conversationID, m.UserID, messages.AttendeeDisconnected{UserID: m.UserID})
	}

	closed, evicted := o.registry.UserDisconnect(m.UserID)
	delete(o.sessions, m.UserID)
	o.finishClosure(closed, evicted)
	slog.Info("user disconnected", "user_id", m.UserID)
}

func (o *Orchestrator) handleBroadcast(m messages.Broadcast) {
	conversationID, ok := o.registry.Conversation(m.AuthorID)
	if !ok || conversationID != m.Message.ConversationID {
		slog.Warn("broadcast from user outside conversation",
			"user_id", m.AuthorID,
			"conversation_id", m.Message.ConversationID)
		return
	}

	push := messages.MessageReceived{Message: m.Message, AuthorName: m.AuthorName}
	for _, userID := range o.registry.Attendees(conversationID) {
		o.send(o.sessions[userID], push)
		if userID != m.AuthorID {
			o.send(messages.NotifierAddr, messages.Notify{
				Session: o.sessions[userID],
				Title:   m.AuthorName,
				Body:    m.Message.Text,
			})
		}
	}
}

func (o *Orchestrator) handleLobbyAttendees(m messages.LobbyAttendees) {
	o.send(m.ReplyTo, messages.LobbyAttendeesReply{
		Seq:     m.Seq,
		UserIDs: o.registry.LobbyAttendees(),
	})
}

// finishClosure completes a conversation closure the registry reported:
// marks it closed in durable storage, tells every evicted session to
// detach, and returns the evicted users to the lobby.
func (o *Orchestrator) finishClosure(closed int64, evicted []int64) {
	if closed == 0 {
		return
	}

	o.send(messages.StorageAddr, messages.CloseConversation{ConversationID: closed})

	for _, userID := range evicted {
		session, ok := o.sessions[userID]
		if !ok {
			continue
		}
		o.send(session, messages.ConversationClosed{ConversationID: closed})
		o.registry.Join(userID, models.LobbyConversationID)
	}
	slog.Info("conversation closed", "conversation_id", closed, "evicted", len(evicted))
}

// fanOut sends a push to every attendee of a conversation except the one
// named by exclude.
func (o *Orchestrator) fanOut(conversationID, exclude int64, push any) {
	for _, userID := range o.registry.Attendees(conversationID) {
		if userID == exclude {
			continue
		}
		o.send(o.sessions[userID], push)
	}
}

func (o *Orchestrator) send(addr bus.Address, msg any) {
	if addr == "" {
		return
	}
	if err := o.bus.Send(addr, msg); err != nil {
		slog.Warn("orchestrator send failed", "address", addr, "error", err)
	}
}
