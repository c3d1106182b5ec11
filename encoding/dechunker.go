package encoding

import (
	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
)

// Dechunker reassembles messages from inbound buffers. A buffer may hold
// the tail of one message, any number of whole messages and the head of
// the next; a message may also arrive split across arbitrarily many
// buffers, chunk headers included.
type Dechunker struct {
	onMessage func(message []byte) error

	header         [2]byte
	headerHave     int
	chunkRemaining int
	message        []byte
}

// NewDechunker Creates a new Dechunker delivering complete messages to
// the given callback
func NewDechunker(onMessage func(message []byte) error) *Dechunker {
	return &Dechunker{onMessage: onMessage}
}

// Feed consumes one inbound buffer, emitting every message it completes
func (d *Dechunker) Feed(buf []byte) error {
	for len(buf) > 0 {
		if d.chunkRemaining == 0 {
			n := copy(d.header[d.headerHave:], buf)
			d.headerHave += n
			buf = buf[n:]
			if d.headerHave < 2 {
				return nil
			}
			d.headerHave = 0
			size := int(d.header[0])<<8 | int(d.header[1])
			if size == 0 {
				if len(d.message) == 0 {
					return errors.Protocol("message boundary with no message data")
				}
				message := d.message
				d.message = nil
				if err := d.onMessage(message); err != nil {
					return err
				}
				continue
			}
			d.chunkRemaining = size
			continue
		}

		n := d.chunkRemaining
		if n > len(buf) {
			n = len(buf)
		}
		d.message = append(d.message, buf[:n]...)
		d.chunkRemaining -= n
		buf = buf[n:]
	}
	return nil
}
