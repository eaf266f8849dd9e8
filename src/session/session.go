// Package session implements the per-connection protocol state machine.
// Each session is a single sequential loop selecting over client frames,
// bus deliveries and its own watchdog timers; it owns no shared state and
// talks to the actors exclusively through the bus.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/messages"
	"github.com/itay-sho/co-buddies-server/src/models"
	"github.com/itay-sho/co-buddies-server/src/protocol"
)

// Conn is the transport handle a session writes to. The transport feeds
// inbound frames through Receive and signals EOF through ConnClosed.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Config carries the session watchdog durations.
type Config struct {
	// AuthTimeout bounds how long a connection may stay unauthenticated.
	AuthTimeout time.Duration
	// InactivityTimeout is the period of the recurring inactivity check.
	InactivityTimeout time.Duration
}

const frameBuffer = 16

type Session struct {
	addr    bus.Address
	conn    Conn
	bus     *bus.Bus
	mailbox <-chan any
	cfg     Config

	frames  chan []byte
	eof     chan struct{}
	eofOnce sync.Once

	// State below is owned by the Run loop; nothing else touches it.
	user           *models.User
	conversationID int64
	outSeq         int64
	hasPNListener  bool
	active         bool
	closing        bool
	authTimer      *time.Timer
}

// New registers a fresh session address on the bus and wraps the accepted
// connection. The caller starts the state machine with Run.
func New(b *bus.Bus, conn Conn, cfg Config) (*Session, error) {
	addr := bus.Address("session:" + uuid.New().String())
	mailbox, err := b.Register(addr, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to register session mailbox: %w", err)
	}
	return &Session{
		addr:    addr,
		conn:    conn,
		bus:     b,
		mailbox: mailbox,
		cfg:     cfg,
		frames:  make(chan []byte, frameBuffer),
		eof:     make(chan struct{}),
	}, nil
}

// Addr returns the session's bus address.
func (s *Session) Addr() bus.Address {
	return s.addr
}

// Receive hands an inbound frame to the state machine. Called by the
// transport's read goroutine.
func (s *Session) Receive(data []byte) {
	select {
	case s.frames <- data:
	case <-s.eof:
	}
}

// ConnClosed signals that the underlying connection is gone.
func (s *Session) ConnClosed() {
	s.eofOnce.Do(func() { close(s.eof) })
}

// Run drives the state machine until the connection closes, a watchdog
// fires, or ctx is cancelled. On exit all registry/pool membership is
// unwound before the connection handle is released.
func (s *Session) Run(ctx context.Context) {
	s.authTimer = time.NewTimer(s.cfg.AuthTimeout)
	defer s.authTimer.Stop()
	inactivity := time.NewTicker(s.cfg.InactivityTimeout)
	defer inactivity.Stop()

	slog.Info("session connected", "session", s.addr)

	for !s.closing {
		select {
		case <-ctx.Done():
			s.closing = true
		case <-s.eof:
			s.closing = true
		case data := <-s.frames:
			// Activity is recorded before validation: even a garbage
			// frame proves the peer is alive.
			s.active = true
			s.handleFrame(data)
		case msg := <-s.mailbox:
			s.handleBusMessage(msg)
		case <-s.authTimer.C:
			if s.user == nil {
				s.sendError(models.CodeAuthenticationTimeout, "authentication timed out", nil)
				s.closing = true
			}
		case <-inactivity.C:
			if !s.active {
				s.sendError(models.CodeInactivenessTimeout, "connection inactive", nil)
				s.closing = true
			}
			s.active = false
		}
	}

	s.cleanup()
}

func (s *Session) handleFrame(data []byte) {
	env, schemaErr := protocol.Decode(data)
	if schemaErr != nil {
		s.sendError(models.CodeSchemaError, schemaErr.Detail, schemaErr.ResponseTo)
		return
	}
	payload, schemaErr := env.DecodePayload()
	if schemaErr != nil {
		s.sendError(models.CodeSchemaError, schemaErr.Detail, schemaErr.ResponseTo)
		return
	}

	// Strict gate: before authentication the only admissible verb is
	// authenticate. Anything else closes the connection with no reply.
	if s.user == nil && env.RequestType != protocol.TypeAuthenticate {
		slog.Warn("frame before authentication, closing", "session", s.addr, "request_type", env.RequestType)
		s.closing = true
		return
	}

	switch p := payload.(type) {
	case *protocol.AuthenticatePayload:
		s.handleAuthenticate(env.Seq, p)
	case *protocol.SendMessagePayload:
		s.handleSendMessage(env.Seq, p)
	case *protocol.RequestMatchPayload:
		s.send(messages.MatchmakerAddr, messages.RequestMatch{UserID: s.user.ID, Session: s.addr})
		s.ack(env.Seq)
	case *protocol.UnrequestMatchPayload:
		s.send(messages.MatchmakerAddr, messages.CancelMatch{UserID: s.user.ID, Session: s.addr})
		s.ack(env.Seq)
	case *protocol.SetPNTokenPayload:
		s.send(messages.NotifierAddr, messages.RegisterPNListener{Session: s.addr, Token: p.Token})
		s.hasPNListener = true
		s.ack(env.Seq)
	default:
		// Server-to-client verbs pass the base schema but are not ours to
		// process.
		s.sendError(models.CodeUnimplemented, fmt.Sprintf("cannot process %s", env.RequestType), &env.Seq)
	}
}

func (s *Session) handleAuthenticate(seq int64, p *protocol.AuthenticatePayload) {
	if s.user != nil {
		s.ack(seq)
		return
	}
	s.send(messages.StorageAddr, messages.Authenticate{
		Token:   p.AccessToken,
		Seq:     seq,
		ReplyTo: s.addr,
	})
}

func (s *Session) handleSendMessage(seq int64, p *protocol.SendMessagePayload) {
	if s.conversationID == 0 || s.conversationID == models.LobbyConversationID {
		s.sendError(models.CodeConversationNotInitialized, "no conversation to send to", &seq)
		return
	}
	s.send(messages.StorageAddr, messages.CreateMessage{
		AuthorID:       s.user.ID,
		ConversationID: s.conversationID,
		Text:           p.Text,
		Seq:            seq,
		ReplyTo:        s.addr,
	})
}

func (s *Session) handleBusMessage(msg any) {
	switch m := msg.(type) {
	case messages.AuthenticateReply:
		s.handleAuthReply(m)
	case messages.CreateMessageReply:
		s.handleMessageReply(m)
	case messages.MatchFound:
		s.handleMatchFound(m)
	case messages.MessageReceived:
		s.sendFrame(protocol.TypeReceiveMessage, protocol.ReceiveMessagePayload{
			ConversationID: m.Message.ConversationID,
			AuthorID:       m.Message.AuthorID,
			AuthorName:     m.AuthorName,
			Text:           m.Message.Text,
			CreatedAt:      m.Message.CreatedAt.Unix(),
		})
	case messages.AttendeeDisconnected:
		s.sendFrame(protocol.TypeDisconnect, protocol.DisconnectPayload{UserID: m.UserID})
	case messages.ConversationClosed:
		if s.conversationID == m.ConversationID {
			s.conversationID = models.LobbyConversationID
		}
	case messages.ForceDisconnect:
		slog.Info("session force-disconnected", "session", s.addr, "reason", m.Reason)
		s.closing = true
	case messages.PNChannelRemoved:
		s.hasPNListener = false
	default:
		slog.Warn("session received unexpected message", "session", s.addr, "message", msg)
	}
}

func (s *Session) handleAuthReply(m messages.AuthenticateReply) {
	if s.user != nil {
		return
	}
	if m.Code != models.CodeOK {
		// Authentication failure is terminal for the connection.
		s.sendError(m.Code, m.Code.String(), &m.Seq)
		s.closing = true
		return
	}

	s.stopAuthTimer()
	s.user = m.User
	s.conversationID = models.LobbyConversationID
	s.send(messages.OrchestratorAddr, messages.Join{
		UserID:         s.user.ID,
		ConversationID: models.LobbyConversationID,
		Session:        s.addr,
	})
	s.ack(m.Seq)
	slog.Info("session authenticated", "session", s.addr, "user_id", s.user.ID)
}

func (s *Session) handleMessageReply(m messages.CreateMessageReply) {
	if m.Code != models.CodeOK {
		s.sendError(m.Code, m.Code.String(), &m.Seq)
		return
	}
	s.ack(m.Seq)
	// Fan-out belongs to the orchestrator; the session never writes to
	// other sessions itself.
	s.send(messages.OrchestratorAddr, messages.Broadcast{
		AuthorID:   s.user.ID,
		AuthorName: s.user.DisplayName,
		Message:    m.Message,
	})
}

func (s *Session) handleMatchFound(m messages.MatchFound) {
	s.conversationID = m.ConversationID
	s.send(messages.OrchestratorAddr, messages.Join{
		UserID:         s.user.ID,
		ConversationID: m.ConversationID,
		Session:        s.addr,
	})

	attendees := make(map[string]string, len(m.Attendees))
	for userID, name := range m.Attendees {
		attendees[strconv.FormatInt(userID, 10)] = name
	}
	s.sendFrame(protocol.TypeReceiveMatch, protocol.ReceiveMatchPayload{
		ConversationID: m.ConversationID,
		Attendees:      attendees,
	})
}

// stopAuthTimer cancels the authentication watchdog. Safe to call after
// the timer already fired; a late fire is also guarded in the Run loop.
func (s *Session) stopAuthTimer() {
	if !s.authTimer.Stop() {
		select {
		case <-s.authTimer.C:
		default:
		}
	}
}

func (s *Session) ack(seq int64) {
	s.sendFrame(protocol.TypeError, protocol.ErrorPayload{
		ErrorCode:  models.CodeOK,
		ResponseTo: &seq,
	})
}

func (s *Session) sendError(code models.ErrorCode, message string, responseTo *int64) {
	s.sendFrame(protocol.TypeError, protocol.ErrorPayload{
		ErrorCode:    code,
		ErrorMessage: message,
		ResponseTo:   responseTo,
	})
}

// sendFrame validates and writes an outbound frame. Outbound sequence
// numbers are the session's own monotonic stream, independent of whatever
// seq the client used for its requests.
func (s *Session) sendFrame(requestType protocol.RequestType, payload any) {
	s.outSeq++
	data, err := protocol.Encode(requestType, s.outSeq, payload)
	if err != nil {
		// An invalid outbound frame is a programming error, not client
		// input; the session cannot continue.
		slog.Error("outbound frame failed validation", "session", s.addr, "error", err)
		s.closing = true
		return
	}
	if err := s.conn.Send(data); err != nil {
		slog.Warn("failed to write frame", "session", s.addr, "error", err)
		s.closing = true
	}
}

// cleanup unwinds all registry and pool membership before the connection
// handle is released. Unauthenticated sessions registered nothing and skip
// straight to the transport teardown.
func (s *Session) cleanup() {
	if s.user != nil {
		s.send(messages.MatchmakerAddr, messages.CancelMatch{UserID: s.user.ID, Session: s.addr})
		s.send(messages.OrchestratorAddr, messages.UserDisconnect{UserID: s.user.ID, Session: s.addr})
		if s.hasPNListener {
			s.send(messages.NotifierAddr, messages.UnregisterPNListener{Session: s.addr})
		}
	}
	s.bus.Deregister(s.addr)
	s.ConnClosed()
	if err := s.conn.Close(); err != nil {
		slog.Debug("closing connection", "session", s.addr, "error", err)
	}
	slog.Info("session closed", "session", s.addr)
}

func (s *Session) send(addr bus.Address, msg any) {
	if err := s.bus.Send(addr, msg); err != nil {
		slog.Warn("session send failed", "session", s.addr, "address", addr, "error", err)
	}
}
