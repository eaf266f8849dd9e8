// Package storage hosts the actor that fronts the durable store. It
// serializes repository calls behind a bus mailbox and turns their results
// into asynchronous replies, so no session or actor ever blocks on the
// database directly.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/messages"
	"github.com/itay-sho/co-buddies-server/src/models"
)

const queryTimeout = 5 * time.Second

// Store is the narrow contract the actor needs from the durable store.
// Implemented by repository.Repository; faked in tests.
type Store interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
	CreateMessage(ctx context.Context, authorID, conversationID int64, text string) (*models.Message, error)
	CreateConversation(ctx context.Context, attendeeIDs []int64) (*models.Conversation, error)
	CloseConversation(ctx context.Context, conversationID int64) error
	DisplayNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

type Actor struct {
	bus     *bus.Bus
	mailbox <-chan any
	store   Store
}

// New registers the storage actor's mailbox on the bus.
func New(b *bus.Bus, store Store) (*Actor, error) {
	mailbox, err := b.Register(messages.StorageAddr, 0)
	if err != nil {
		return nil, err
	}
	return &Actor{
		bus:     b,
		mailbox: mailbox,
		store:   store,
	}, nil
}

// Run drains the mailbox until ctx is cancelled. Store failures become
// error replies; they never terminate the actor.
func (a *Actor) Run(ctx context.Context) {
	slog.Info("storage actor started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("storage actor stopped")
			return
		case msg := <-a.mailbox:
			a.handle(ctx, msg)
		}
	}
}

func (a *Actor) handle(ctx context.Context, msg any) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	switch cmd := msg.(type) {
	case messages.Authenticate:
		a.handleAuthenticate(ctx, cmd)
	case messages.CreateMessage:
		a.handleCreateMessage(ctx, cmd)
	case messages.CreateConversation:
		a.handleCreateConversation(ctx, cmd)
	case messages.CloseConversation:
		if err := a.store.CloseConversation(ctx, cmd.ConversationID); err != nil {
			slog.Error("failed to close conversation", "conversation_id", cmd.ConversationID, "error", err)
		}
	default:
		slog.Warn("storage actor received unexpected message", "message", msg)
	}
}

func (a *Actor) handleAuthenticate(ctx context.Context, cmd messages.Authenticate) {
	reply := messages.AuthenticateReply{Seq: cmd.Seq, Code: models.CodeOK}

	user, err := a.store.Authenticate(ctx, cmd.Token)
	switch {
	case errors.Is(err, models.ErrInvalidToken):
		reply.Code = models.CodeAuthFailInvalidToken
	case errors.Is(err, models.ErrUserInactive):
		reply.Code = models.CodeAuthFailUserInactive
	case err != nil:
		// Infrastructure failure, not a verdict on the token.
		slog.Error("authentication lookup failed", "error", err)
		reply.Code = models.CodeUnknownError
	default:
		reply.User = user
	}

	a.send(cmd.ReplyTo, reply)
}

func (a *Actor) handleCreateMessage(ctx context.Context, cmd messages.CreateMessage) {
	reply := messages.CreateMessageReply{Seq: cmd.Seq, Code: models.CodeOK}

	message, err := a.store.CreateMessage(ctx, cmd.AuthorID, cmd.ConversationID, cmd.Text)
	switch {
	case errors.Is(err, models.ErrConversationClosed):
		reply.Code = models.CodeConversationClosed
	case err != nil:
		// The sender needs to know the message did not take effect.
		slog.Error("failed to create message", "conversation_id", cmd.ConversationID, "error", err)
		reply.Code = models.CodeUnknownError
	default:
		reply.Message = message
	}

	a.send(cmd.ReplyTo, reply)
}

func (a *Actor) handleCreateConversation(ctx context.Context, cmd messages.CreateConversation) {
	reply := messages.CreateConversationReply{Ref: cmd.Ref}

	conversation, err := a.store.CreateConversation(ctx, cmd.AttendeeIDs)
	if err != nil {
		reply.Err = err
		a.send(cmd.ReplyTo, reply)
		return
	}

	names, err := a.store.DisplayNames(ctx, cmd.AttendeeIDs)
	if err != nil {
		reply.Err = err
		a.send(cmd.ReplyTo, reply)
		return
	}

	reply.Conversation = conversation
	reply.Attendees = names
	a.send(cmd.ReplyTo, reply)
}

func (a *Actor) send(addr bus.Address, msg any) {
	if err := a.bus.Send(addr, msg); err != nil {
		slog.Warn("storage actor send failed", "address", addr, "error", err)
	}
}
