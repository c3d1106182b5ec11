package encoding

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
)

// Chunker frames outgoing messages. Message bytes buffer until
// CloseMessage frames them into length-prefixed chunks plus the zero
// boundary; framed output reaches the underlying writer only on Flush.
// A failed serialization can Discard the partial message without
// disturbing messages already framed.
type Chunker struct {
	w       io.Writer
	message bytes.Buffer
	out     bytes.Buffer
}

// NewChunker Creates a new Chunker around the given writer
func NewChunker(w io.Writer) *Chunker {
	return &Chunker{w: w}
}

// Write appends bytes to the message being built
func (c *Chunker) Write(p []byte) (int, error) {
	return c.message.Write(p)
}

// Pending returns the number of bytes of the message being built
func (c *Chunker) Pending() int {
	return c.message.Len()
}

// Discard drops the message being built without framing it
func (c *Chunker) Discard() {
	c.message.Reset()
}

// CloseMessage frames the message being built into chunks of at most
// MaxChunkSize bytes, each preceded by its big-endian length, terminated
// by a zero-length chunk.
func (c *Chunker) CloseMessage() {
	data := c.message.Bytes()
	var header [2]byte
	for len(data) > 0 {
		size := len(data)
		if size > MaxChunkSize {
			size = MaxChunkSize
		}
		binary.BigEndian.PutUint16(header[:], uint16(size))
		c.out.Write(header[:])
		c.out.Write(data[:size])
		data = data[size:]
	}
	c.out.Write(EndMessage)
	c.message.Reset()
}

// Flush hands all framed messages to the underlying writer
func (c *Chunker) Flush() error {
	if c.out.Len() == 0 {
		return nil
	}
	if _, err := c.w.Write(c.out.Bytes()); err != nil {
		c.out.Reset()
		return errors.WrapTransport(err, "writing framed messages")
	}
	c.out.Reset()
	return nil
}
