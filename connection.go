package bolt

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/joknelid/golang-neo4j-bolt-connection/encoding"
	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
	"github.com/joknelid/golang-neo4j-bolt-connection/log"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures/messages"
)

// Connection drives one protocol session over a Channel: it performs the
// version handshake, frames and serializes outbound requests, parses
// inbound responses and dispatches them to the observer that issued the
// matching request. Responses return in submission order, so the FIFO
// observer queue is the whole correlation mechanism.
//
// All queue and state transitions happen under one mutex; observer
// callbacks run outside it, after the queue has advanced past their
// request.
type Connection struct {
	id      string
	addr    string
	channel Channel

	chunker   *encoding.Chunker
	packer    *encoding.Packer
	dechunker *encoding.Dechunker
	unpacker  *encoding.Unpacker
	state     *connectionState

	mu                sync.Mutex
	handshakePending  bool
	handshakeBuf      []byte
	current           *StreamObserver
	pending           []StreamObserver
	isBroken          bool
	brokenErr         error
	isHandlingFailure bool
	currentFailure    error
	serverAgent       string
}

// NewConnection attaches to the channel and immediately writes the
// protocol handshake. The returned connection is usable for request
// submission right away; requests queue behind the handshake.
func NewConnection(channel Channel, addr string) (*Connection, error) {
	c := &Connection{
		id:               uuid.NewString(),
		addr:             addr,
		channel:          channel,
		handshakePending: true,
	}
	c.state = newConnectionState(c)
	c.chunker = encoding.NewChunker(channel)
	c.packer = encoding.NewPacker(c.chunker)
	c.dechunker = encoding.NewDechunker(c.dispatchMessage)
	c.unpacker = encoding.NewUnpacker()

	channel.SetHooks(c.handleData, c.handleFatalError)
	if err := channel.Err(); err != nil {
		c.handleFatalError(err)
		return nil, err
	}

	handshake := handshakeRequest()
	log.Tracef("[%s] sending handshake to %s:\n%s", c.id, addr, SprintByteHex(handshake))
	if _, err := channel.Write(handshake); err != nil {
		wrapped := errors.WrapTransport(err, "writing handshake to %s", addr)
		c.handleFatalError(wrapped)
		return nil, wrapped
	}
	return c, nil
}

// Initialize authenticates the session. The INIT response resolves the
// future returned by InitializationCompleted; a failed INIT poisons the
// connection. Flushes immediately.
func (c *Connection) Initialize(clientName string, authToken map[string]interface{}, obs StreamObserver) error {
	return c.enqueueMessage(messages.NewInitMessage(clientName, authToken), c.state.wrap(obs), true)
}

// Run submits a statement with parameters. Does not flush; call Sync.
func (c *Connection) Run(statement string, parameters map[string]interface{}, obs StreamObserver) error {
	return c.enqueueMessage(messages.NewRunMessage(statement, parameters), obs, false)
}

// PullAll requests all records of the last Run. Does not flush.
func (c *Connection) PullAll(obs StreamObserver) error {
	return c.enqueueMessage(messages.NewPullAllMessage(), obs, false)
}

// DiscardAll drops all records of the last Run server-side. Does not flush.
func (c *Connection) DiscardAll(obs StreamObserver) error {
	return c.enqueueMessage(messages.NewDiscardAllMessage(), obs, false)
}

// Reset returns the server session to a clean state. Does not flush.
func (c *Connection) Reset(obs StreamObserver) error {
	return c.enqueueMessage(messages.NewResetMessage(), obs, false)
}

// ResetAsync resets while muting failure handling from the moment of
// submission: the IGNORED flood from requests already on the wire must
// not trigger acknowledgements. The mute lifts when the RESET completes.
func (c *Connection) ResetAsync(obs StreamObserver) error {
	c.mu.Lock()
	c.isHandlingFailure = true
	c.mu.Unlock()

	wrapped := StreamObserver{
		OnNext: obs.notifyNext,
		OnCompleted: func(metadata map[string]interface{}) {
			c.mu.Lock()
			c.isHandlingFailure = false
			c.currentFailure = nil
			c.mu.Unlock()
			obs.notifyCompleted(metadata)
		},
		OnError: obs.notifyError,
	}
	return c.enqueueMessage(messages.NewResetMessage(), wrapped, false)
}

// Sync flushes every framed message to the channel. It does not wait
// for responses.
func (c *Connection) Sync() error {
	c.mu.Lock()
	if c.isBroken {
		err := c.brokenErr
		c.mu.Unlock()
		return err
	}
	err := c.chunker.Flush()
	c.mu.Unlock()
	if err != nil {
		c.handleFatalError(err)
		return err
	}
	return nil
}

// Close shuts the channel down and errors every observer still waiting
func (c *Connection) Close() error {
	err := c.channel.Close()
	c.handleFatalError(errors.Transport("connection closed"))
	if err != nil {
		return errors.WrapTransport(err, "closing channel to %s", c.addr)
	}
	return nil
}

// IsOpen reports whether the connection can still accept requests
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.isBroken
}

// IsEncrypted reports whether the underlying channel runs over TLS
func (c *Connection) IsEncrypted() bool {
	return c.channel.IsEncrypted()
}

// InitializationCompleted returns the one-shot future of INIT completion
func (c *Connection) InitializationCompleted() *InitFuture {
	return c.state.initFuture()
}

// ServerAgent returns the server identification from the INIT metadata
func (c *Connection) ServerAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverAgent
}

// enqueueMessage couples queueing and serialization under the lock so
// that observer order always equals wire order.
func (c *Connection) enqueueMessage(message structures.Structure, obs StreamObserver, flush bool) error {
	c.mu.Lock()
	if c.isBroken {
		err := c.brokenErr
		c.mu.Unlock()
		obs.notifyError(err)
		return err
	}

	if c.current == nil {
		c.current = &obs
	} else {
		c.pending = append(c.pending, obs)
	}

	if err := c.packer.PackStructure(message); err != nil {
		c.chunker.Discard()
		c.mu.Unlock()
		c.handleFatalError(err)
		return err
	}
	c.chunker.CloseMessage()

	var flushErr error
	if flush {
		flushErr = c.chunker.Flush()
	}
	c.mu.Unlock()

	if flushErr != nil {
		c.handleFatalError(flushErr)
		return flushErr
	}
	return nil
}

// handleData is the channel delivery hook. The first four inbound bytes
// settle the handshake; surplus bytes in the same buffer flow straight
// into the dechunker.
func (c *Connection) handleData(buf []byte) {
	if log.Level >= log.TraceLevel {
		log.Tracef("[%s] received:\n%s", c.id, SprintByteHex(buf))
	}

	c.mu.Lock()
	if c.isBroken {
		c.mu.Unlock()
		return
	}
	if c.handshakePending {
		c.handshakeBuf = append(c.handshakeBuf, buf...)
		if len(c.handshakeBuf) < 4 {
			c.mu.Unlock()
			return
		}
		version := binary.BigEndian.Uint32(c.handshakeBuf[:4])
		surplus := c.handshakeBuf[4:]
		c.handshakeBuf = nil
		c.handshakePending = false
		c.mu.Unlock()
		c.settleHandshake(version, surplus)
		return
	}
	c.mu.Unlock()

	if err := c.dechunker.Feed(buf); err != nil {
		c.handleFatalError(err)
	}
}

func (c *Connection) settleHandshake(version uint32, surplus []byte) {
	switch version {
	case protocolVersion:
		log.Infof("[%s] agreed on protocol version %d with %s", c.id, version, c.addr)
		if len(surplus) > 0 {
			if err := c.dechunker.Feed(surplus); err != nil {
				c.handleFatalError(err)
			}
		}
	case httpSignature:
		c.handleFatalError(errors.Handshake(
			"server at %s responded with HTTP: port 7474 serves HTTP, the protocol lives on port 7687", c.addr))
	default:
		c.handleFatalError(errors.Handshake("unknown protocol version: %d", version))
	}
}

// dispatchMessage routes one complete inbound message to the observer
// that owns it. The queue advances past a terminal before the terminal
// callback runs, so reentrant submissions from inside a callback see a
// consistent queue.
func (c *Connection) dispatchMessage(message []byte) error {
	value, err := c.unpacker.Unpack(message)
	if err != nil {
		return err
	}

	switch msg := value.(type) {
	case messages.RecordMessage:
		c.mu.Lock()
		if c.isBroken || c.current == nil {
			c.mu.Unlock()
			return nil
		}
		obs := *c.current
		c.mu.Unlock()
		obs.notifyNext(msg.Fields)

	case messages.SuccessMessage:
		c.mu.Lock()
		if c.isBroken {
			c.mu.Unlock()
			return nil
		}
		obs := c.advanceLocked()
		c.mu.Unlock()
		obs.notifyCompleted(msg.Metadata)

	case messages.FailureMessage:
		failure := errors.ServerFailure(msg.Metadata)
		log.Errorf("[%s] server failure: %s", c.id, errors.CodeOf(failure))
		c.mu.Lock()
		if c.isBroken {
			c.mu.Unlock()
			return nil
		}
		c.currentFailure = failure
		needAck := !c.isHandlingFailure
		if needAck {
			c.isHandlingFailure = true
		}
		obs := c.advanceLocked()
		c.mu.Unlock()
		obs.notifyError(failure)
		if needAck {
			c.ackFailure()
		}

	case messages.IgnoredMessage:
		c.mu.Lock()
		if c.isBroken {
			c.mu.Unlock()
			return nil
		}
		err := c.currentFailure
		if err == nil {
			err = errors.Ignored(msg.Metadata)
		}
		obs := c.advanceLocked()
		c.mu.Unlock()
		obs.notifyError(err)

	default:
		return errors.Protocol("unexpected inbound message: %T", value)
	}
	return nil
}

// advanceLocked removes the current observer from the queue and promotes
// the next pending one. Caller holds the mutex.
func (c *Connection) advanceLocked() StreamObserver {
	var obs StreamObserver
	if c.current != nil {
		obs = *c.current
	}
	if len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.current = &next
	} else {
		c.current = nil
	}
	return obs
}

// ackFailure sends the single acknowledgement of the current failure
// episode. Its internal observer lifts the mute once the server confirms.
func (c *Connection) ackFailure() {
	internal := StreamObserver{
		OnCompleted: func(metadata map[string]interface{}) {
			c.mu.Lock()
			c.isHandlingFailure = false
			c.currentFailure = nil
			c.mu.Unlock()
		},
	}
	if err := c.enqueueMessage(messages.NewAckFailureMessage(), internal, true); err != nil {
		log.Errorf("[%s] failed to acknowledge server failure: %v", c.id, err)
	}
}

// completeInitialization records the server identity from the INIT
// metadata and flips the byte-array gate for servers older than 3.2.0
func (c *Connection) completeInitialization(metadata map[string]interface{}) {
	agent, _ := metadata["server"].(string)
	c.mu.Lock()
	c.serverAgent = agent
	if major, minor, _, ok := parseServerVersion(agent); ok && versionBefore(major, minor, 3, 2) {
		c.packer.SetBytesSupport(false)
	}
	c.mu.Unlock()
	log.Infof("[%s] initialized against %q", c.id, agent)
}

// handleFatalError latches the connection broken: the current and every
// pending observer receive the error in queue order, the queue drains,
// and every later submission fails immediately with the same error.
func (c *Connection) handleFatalError(err error) {
	c.mu.Lock()
	if c.isBroken {
		c.mu.Unlock()
		return
	}
	c.isBroken = true
	c.brokenErr = err

	var victims []StreamObserver
	if c.current != nil {
		victims = append(victims, *c.current)
	}
	victims = append(victims, c.pending...)
	c.current = nil
	c.pending = nil
	c.mu.Unlock()

	log.Errorf("[%s] connection to %s broken: %v", c.id, c.addr, err)
	c.state.fail(err)
	for _, obs := range victims {
		obs.notifyError(err)
	}
}
