// Package serialmux provides an abstraction over a serial port with
// the ability for multiple clients to subscribe to data from the port
// and send commands to a single attached device.
//
// Unlike a line-oriented sensor feed, HPGL has no newline framing:
// instructions end at semicolons or label terminators that may arrive
// split across reads. The mux therefore fans out raw byte chunks as
// they come off the wire and leaves framing to the consumer.
package serialmux

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// readBlockSize is the chunk size for port reads. Plotter links are
// slow (9600 baud is typical), so small blocks keep latency down.
const readBlockSize = 64

// SerialMux is a generic serial port multiplexer that allows multiple
// clients to subscribe to raw data chunks from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan []byte
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving data chunks from
	// the serial port. The channel ID identifies the channel when
	// unsubscribing.
	Subscribe() (string, chan []byte)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided HPGL command to the serial port.
	SendCommand(string) error
	// Monitor reads chunks from the serial port and fans them out to
	// subscribers until the context is cancelled or the port fails.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error
}

var _ SerialMuxInterface = (*SerialMux[*MockSerialPort])(nil)

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan []byte),
	}
}

func (s *SerialMux[T]) Subscribe() (string, chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand sends an HPGL command to the plotter side of the link.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte(";")) {
		command += ";" // ensure the instruction is terminated
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads from the serial port and fans chunks out to
// subscribers. NUL bytes, common filler on noisy instrument links, are
// stripped before delivery.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	chunkChan := make(chan []byte)
	readErrChan := make(chan error, 1)

	// Reads block on the port; running them in their own goroutine
	// keeps the outer loop responsive to context cancellation.
	go func() {
		defer close(chunkChan)
		buf := make([]byte, readBlockSize)
		for {
			n, err := s.port.Read(buf)
			if n > 0 {
				chunk := bytes.ReplaceAll(buf[:n], []byte{0}, nil)
				if len(chunk) > 0 {
					out := make([]byte, len(chunk))
					copy(out, chunk)
					select {
					case chunkChan <- out:
					case <-ctx.Done():
						return
					}
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case readErrChan <- err:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErrChan:
			return err

		case chunk, ok := <-chunkChan:
			if !ok {
				return nil
			}
			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- chunk:
				default:
					// A full subscriber must not stall the wire.
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}
