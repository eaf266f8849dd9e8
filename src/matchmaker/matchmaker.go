// Package matchmaker maintains the pool of users waiting to be paired and
// runs the recurring pairing cycle. The cycle is a tick command on the
// actor's own mailbox, so it can never overlap itself or race a
// request/cancel command.
package matchmaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/messages"
)

// tick triggers one pairing cycle.
type tick struct{}

// pendingMatch remembers the two halves of a pair while the storage
// collaborator creates their conversation.
type pendingMatch struct {
	first  poolEntry
	second poolEntry
}

type poolEntry struct {
	userID  int64
	session bus.Address
}

type Matchmaker struct {
	bus     *bus.Bus
	mailbox <-chan any
	policy  PairPolicy
	period  time.Duration

	// pool maps waiting users to their session addresses. Membership is
	// exclusive: a re-request under a new session supersedes the old one.
	pool    map[int64]bus.Address
	pending map[string]pendingMatch
}

// New registers the matchmaker's mailbox on the bus. A nil policy selects
// ArbitraryPolicy.
func New(b *bus.Bus, policy PairPolicy, period time.Duration) (*Matchmaker, error) {
	mailbox, err := b.Register(messages.MatchmakerAddr, 0)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = ArbitraryPolicy{}
	}
	return &Matchmaker{
		bus:     b,
		mailbox: mailbox,
		policy:  policy,
		period:  period,
		pool:    make(map[int64]bus.Address),
		pending: make(map[string]pendingMatch),
	}, nil
}

// Run drains the mailbox until ctx is cancelled, enqueueing a pairing tick
// to itself every period.
func (m *Matchmaker) Run(ctx context.Context) {
	slog.Info("matchmaker started", "period", m.period)
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("matchmaker stopped")
			return
		case <-ticker.C:
			m.handle(tick{})
		case msg := <-m.mailbox:
			m.handle(msg)
		}
	}
}

func (m *Matchmaker) handle(msg any) {
	switch cmd := msg.(type) {
	case messages.RequestMatch:
		m.handleRequestMatch(cmd)
	case messages.CancelMatch:
		m.handleCancelMatch(cmd)
	case messages.CreateConversationReply:
		m.handleConversationCreated(cmd)
	case tick:
		m.seekMatches()
	default:
		slog.Warn("matchmaker received unexpected message", "message", msg)
	}
}

func (m *Matchmaker) handleRequestMatch(cmd messages.RequestMatch) {
	if stale, ok := m.pool[cmd.UserID]; ok && stale != cmd.Session {
		// The same user enqueued from a newer connection; the old session
		// has been superseded and must go.
		slog.Info("superseding stale match request", "user_id", cmd.UserID)
		m.send(stale, messages.ForceDisconnect{Reason: "superseded by a newer connection"})
	}
	m.pool[cmd.UserID] = cmd.Session
	slog.Debug("user added to matchmaking pool", "user_id", cmd.UserID, "pool_size", len(m.pool))
}

func (m *Matchmaker) handleCancelMatch(cmd messages.CancelMatch) {
	if current, ok := m.pool[cmd.UserID]; ok && current == cmd.Session {
		delete(m.pool, cmd.UserID)
		slog.Debug("user removed from matchmaking pool", "user_id", cmd.UserID)
	}
}

// seekMatches consumes pairs from the pool until at most one user remains.
// Each pair is handed to the storage collaborator; the match completes when
// the conversation-created reply arrives.
func (m *Matchmaker) seekMatches() {
	snapshot := make(map[int64]struct{}, len(m.pool))
	for userID := range m.pool {
		snapshot[userID] = struct{}{}
	}

	for {
		first, second, ok := m.policy.Pick(snapshot)
		if !ok {
			return
		}
		delete(snapshot, first)
		delete(snapshot, second)

		match := pendingMatch{
			first:  poolEntry{userID: first, session: m.pool[first]},
			second: poolEntry{userID: second, session: m.pool[second]},
		}
		delete(m.pool, first)
		delete(m.pool, second)

		ref := uuid.New().String()
		m.pending[ref] = match
		m.send(messages.StorageAddr, messages.CreateConversation{
			Ref:         ref,
			AttendeeIDs: []int64{first, second},
			ReplyTo:     messages.MatchmakerAddr,
		})
		slog.Info("match candidate paired", "first", first, "second", second)
	}
}

func (m *Matchmaker) handleConversationCreated(reply messages.CreateConversationReply) {
	match, ok := m.pending[reply.Ref]
	if !ok {
		slog.Warn("conversation reply for unknown match", "ref", reply.Ref)
		return
	}
	delete(m.pending, reply.Ref)

	if reply.Err != nil {
		// Storage failed; both users go back to the pool for the next
		// cycle unless a newer request claimed their slot meanwhile.
		slog.Error("failed to create conversation for match", "error", reply.Err)
		m.requeue(match.first)
		m.requeue(match.second)
		return
	}

	found := messages.MatchFound{
		ConversationID: reply.Conversation.ID,
		Attendees:      reply.Attendees,
	}
	m.send(match.first.session, found)
	m.send(match.second.session, found)
	slog.Info("match created",
		"conversation_id", reply.Conversation.ID,
		"first", match.first.userID,
		"second", match.second.userID)
}

func (m *Matchmaker) requeue(entry poolEntry) {
	if _, ok := m.pool[entry.userID]; !ok {
		m.pool[entry.userID] = entry.session
	}
}

func (m *Matchmaker) send(addr bus.Address, msg any) {
	if err := m.bus.Send(addr, msg); err != nil {
		slog.Warn("matchmaker send failed", "address", addr, "error", err)
	}
}
