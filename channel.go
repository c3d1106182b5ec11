package bolt

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
	"github.com/joknelid/golang-neo4j-bolt-connection/log"
)

// Channel is the byte transport the connection runs on. Inbound buffers
// and asynchronous transport errors arrive through the hooks; Err
// surfaces an error that happened before the hooks were attached.
type Channel interface {
	io.Writer
	SetHooks(onData func(buf []byte), onError func(err error))
	Err() error
	IsEncrypted() bool
	Close() error
}

// Config carries the transport settings for Connect
type Config struct {
	// DialTimeout bounds the TCP (and TLS) dial. Zero means no timeout.
	DialTimeout time.Duration
	// WriteTimeout bounds each write to the channel. Zero means no timeout.
	WriteTimeout time.Duration
	// UserAgent overrides the client name sent on INIT
	UserAgent string
	// TLSConfig enables TLS on the channel when set
	TLSConfig *tls.Config
}

// TCPChannel adapts a net.Conn to the Channel contract. A reader
// goroutine delivers inbound buffers; buffers and errors that arrive
// before SetHooks are held back and replayed on attachment.
type TCPChannel struct {
	conn      net.Conn
	addr      string
	encrypted bool
	timeout   time.Duration

	mu      sync.Mutex
	onData  func(buf []byte)
	onError func(err error)
	held    [][]byte
	err     error
	closed  bool
}

// DialChannel opens a TCP (optionally TLS) channel to the given address
func DialChannel(addr string, config Config) (*TCPChannel, error) {
	dialer := net.Dialer{Timeout: config.DialTimeout}
	var conn net.Conn
	var err error
	if config.TLSConfig != nil {
		conn, err = tls.DialWithDialer(&dialer, "tcp", addr, config.TLSConfig)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, errors.WrapTransport(err, "dialing %s", addr)
	}

	c := &TCPChannel{
		conn:      conn,
		addr:      addr,
		encrypted: config.TLSConfig != nil,
		timeout:   config.WriteTimeout,
	}
	go c.readLoop()
	return c, nil
}

func (c *TCPChannel) readLoop() {
	buf := make([]byte, 8192)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.deliver(data)
		}
		if err != nil {
			c.fail(errors.WrapTransport(err, "reading from %s", c.addr))
			return
		}
	}
}

func (c *TCPChannel) deliver(data []byte) {
	c.mu.Lock()
	if c.onData == nil {
		c.held = append(c.held, data)
		c.mu.Unlock()
		return
	}
	hook := c.onData
	c.mu.Unlock()
	hook(data)
}

func (c *TCPChannel) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.err == nil {
		c.err = err
	}
	hook := c.onError
	c.mu.Unlock()
	if hook != nil {
		hook(err)
	}
}

// SetHooks attaches the delivery hooks and replays anything that arrived
// before attachment, buffers first.
func (c *TCPChannel) SetHooks(onData func(buf []byte), onError func(err error)) {
	c.mu.Lock()
	c.onData = onData
	c.onError = onError
	held := c.held
	c.held = nil
	err := c.err
	c.mu.Unlock()

	for _, data := range held {
		onData(data)
	}
	if err != nil && onError != nil {
		onError(err)
	}
}

// Err returns the first transport error the channel latched, if any,
// whether it arrived before or after hook attachment
func (c *TCPChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *TCPChannel) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	n, err := c.conn.Write(p)
	if n > 0 && log.Level >= log.TraceLevel {
		log.Tracef("wrote %d bytes to %s:\n%s", n, c.addr, SprintByteHex(p[:n]))
	}
	return n, err
}

// IsEncrypted reports whether the channel runs over TLS
func (c *TCPChannel) IsEncrypted() bool {
	return c.encrypted
}

// Close shuts the transport down. The reader goroutine's resulting read
// error is suppressed.
func (c *TCPChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	log.Tracef("closing channel to %s", c.addr)
	return c.conn.Close()
}
