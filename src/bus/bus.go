// Package bus is the asynchronous message-delivery substrate connecting
// sessions and actors. Every participant registers a mailbox under a
// logical address; sends are fire-and-forget and delivered in order per
// destination. Nothing else is shared between participants.
package bus

import (
	"errors"
	"fmt"
	"sync"
)

const defaultMailboxSize = 256

// Address identifies a mailbox on the bus.
type Address string

var (
	// ErrUnknownAddress indicates a send to an address with no registered mailbox
	ErrUnknownAddress = errors.New("unknown bus address")

	// ErrMailboxFull indicates the destination mailbox is saturated; the message is dropped
	ErrMailboxFull = errors.New("mailbox full")

	// ErrAddressTaken indicates a duplicate registration for the same address
	ErrAddressTaken = errors.New("address already registered")

	// ErrBusClosed indicates the bus has been shut down
	ErrBusClosed = errors.New("bus is closed")
)

// Bus routes messages between named mailboxes. The lock guards only the
// address table; delivery order per destination is the channel's order.
type Bus struct {
	mu        sync.RWMutex
	mailboxes map[Address]chan any
	closed    bool
}

func New() *Bus {
	return &Bus{
		mailboxes: make(map[Address]chan any),
	}
}

// Register creates a mailbox for addr and returns its receive side. The
// caller owns draining it; a buffer of 0 selects the default size.
func (b *Bus) Register(addr Address, buffer int) (<-chan any, error) {
	if buffer <= 0 {
		buffer = defaultMailboxSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, ok := b.mailboxes[addr]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAddressTaken, addr)
	}
	mailbox := make(chan any, buffer)
	b.mailboxes[addr] = mailbox
	return mailbox, nil
}

// Deregister removes addr's mailbox. Messages already queued stay readable
// by the previous owner; further sends fail with ErrUnknownAddress.
func (b *Bus) Deregister(addr Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.mailboxes, addr)
}

// Send delivers msg to addr without blocking. A full mailbox drops the
// message and reports ErrMailboxFull; the sender decides whether that is
// fatal.
func (b *Bus) Send(addr Address, msg any) error {
	b.mu.RLock()
	mailbox, ok := b.mailboxes[addr]
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return ErrBusClosed
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	}

	select {
	case mailbox <- msg:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrMailboxFull, addr)
	}
}

// Close rejects all further registrations and sends. Mailboxes are left
// open so their owners can drain in-flight messages.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
