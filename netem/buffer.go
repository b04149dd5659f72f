// Package netem implements the network emulator: a process that sits
// between the real client and server sockets, queues datagrams per
// round, and applies configured drop/duplicate-ack/buffer-capacity
// faults, per _examples/original_source/client.py's PacketBuffer,
// PacketProcessor, and main loop.
package netem

import (
	"net"

	"flowcast/wire"
)

// Entry is one datagram sitting in a Buffer, along with the address that
// should receive it (its original destination, or back at its sender if
// Reflect is set).
type Entry struct {
	Payload []byte
	Addr    net.Addr
	Reflect bool
}

// Buffer is a per-round FIFO with a fixed capacity, matching
// client.py's PacketBuffer. Enqueue stamps the ECN overlay and flags the
// entry for reflection back to its sender once the buffer has accepted
// more datagrams this round than its capacity allows; Dequeue drains the
// whole queue and resets the available space, matching one round's
// worth of queuing.
type Buffer struct {
	capacity  int
	available int
	queue     []Entry
}

// NewBuffer returns an empty buffer with the given capacity. A capacity
// below 1 is clamped to 1, matching PacketBuffer.set_size's max(n,1).
func NewBuffer(capacity int) *Buffer {
	b := &Buffer{}
	b.SetCapacity(capacity)
	return b
}

// SetCapacity changes the buffer's per-round capacity and immediately
// resets its available space, matching set_size's reset_available_space
// call.
func (b *Buffer) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	b.capacity = capacity
	b.available = capacity
}

// Capacity reports the buffer's current per-round capacity.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Enqueue appends one datagram from addr. Once available space is
// exhausted, every further datagram this round is wrapped in the ECN
// overlay and flagged for reflection back to addr instead of delivery.
func (b *Buffer) Enqueue(payload []byte, addr net.Addr) error {
	reflect := false
	out := payload
	if b.available <= 0 {
		var err error
		out, err = wire.WithECN(payload)
		if err != nil {
			return err
		}
		reflect = true
	}
	b.queue = append(b.queue, Entry{Payload: out, Addr: addr, Reflect: reflect})
	b.available--
	return nil
}

// Dequeue drains every queued entry in arrival order and resets the
// buffer's available space for the next round.
func (b *Buffer) Dequeue() []Entry {
	items := b.queue
	b.queue = nil
	b.available = b.capacity
	return items
}

// IsEmpty reports whether the buffer currently holds no entries.
func (b *Buffer) IsEmpty() bool {
	return len(b.queue) == 0
}
