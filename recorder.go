package bolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joknelid/golang-neo4j-bolt-connection/encoding"
	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
	"github.com/joknelid/golang-neo4j-bolt-connection/log"
)

// Event is a single recorded exchange on the wire, either a write from
// the client or a read from the server. An event is completed once its
// bytes end on a message boundary.
type Event struct {
	Timestamp int64 `json:"-"`
	Event     []byte
	IsWrite   bool
	Completed bool
	Error     string
}

func newEvent(isWrite bool) *Event {
	return &Event{
		Timestamp: time.Now().UnixNano(),
		Event:     []byte{},
		IsWrite:   isWrite,
	}
}

// Recorder traffic-records a channel in record mode and impersonates
// one in replay mode. In record mode it wraps a live channel and logs
// every buffer in both directions; in replay mode it serves the
// recorded reads back in response to the recorded writes, with no
// network underneath.
type Recorder struct {
	name    string
	channel Channel

	mu      sync.Mutex
	events  []*Event
	cursor  int
	onData  func(buf []byte)
	onError func(err error)
	closed  bool

	// replay delivers recorded reads from a dedicated goroutine, the
	// way a live channel's reader does. Buffered to the recording size
	// so delivery never blocks a write in progress.
	replay chan func()
}

// NewRecorder wraps a live channel for recording. Close writes the
// recording to recordings/<name>.json when RECORD_OUTPUT is set.
func NewRecorder(name string, channel Channel) *Recorder {
	return &Recorder{name: name, channel: channel}
}

// NewReplayer loads a recording and returns a channel that replays it
func NewReplayer(name string) (*Recorder, error) {
	r := &Recorder{name: name}
	if err := r.load(); err != nil {
		return nil, err
	}
	r.startReplay()
	return r, nil
}

func (r *Recorder) startReplay() {
	r.replay = make(chan func(), len(r.events)+1)
	go func() {
		for deliver := range r.replay {
			deliver()
		}
	}()
}

func (r *Recorder) load() error {
	path := filepath.Join("recordings", r.name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "loading recording %s", path)
	}
	return json.Unmarshal(data, &r.events)
}

func (r *Recorder) writeRecording() error {
	if os.Getenv("RECORD_OUTPUT") == "" {
		return nil
	}
	data, err := json.MarshalIndent(r.events, "", "	")
	if err != nil {
		return err
	}
	if err := os.MkdirAll("recordings", 0755); err != nil {
		return err
	}
	path := filepath.Join("recordings", r.name+".json")
	log.Infof("writing recording %s", path)
	return os.WriteFile(path, data, 0644)
}

// record appends data to the current event for the given direction,
// opening a new event when the direction flips or the previous one
// completed. Events complete on a message boundary.
func (r *Recorder) record(data []byte, isWrite bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var event *Event
	if len(r.events) > 0 {
		last := r.events[len(r.events)-1]
		if last.IsWrite == isWrite && !last.Completed {
			event = last
		}
	}
	if event == nil {
		event = newEvent(isWrite)
		r.events = append(r.events, event)
	}
	event.Event = append(event.Event, data...)
	event.Completed = bytes.HasSuffix(event.Event, encoding.EndMessage)
}

func (r *Recorder) recordError(err error, isWrite bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event := newEvent(isWrite)
	event.Error = err.Error()
	event.Completed = true
	r.events = append(r.events, event)
}

func (r *Recorder) Write(p []byte) (int, error) {
	if r.channel != nil {
		n, err := r.channel.Write(p)
		if n > 0 {
			r.record(p[:n], true)
		}
		if err != nil {
			r.recordError(err, true)
		}
		return n, err
	}
	return r.replayWrite(p)
}

// replayWrite consumes the current recorded write event, verifying the
// bytes match the recording, and pushes any read events that follow the
// completed write back through the data hook.
func (r *Recorder) replayWrite(p []byte) (int, error) {
	r.mu.Lock()
	if r.cursor >= len(r.events) {
		r.mu.Unlock()
		return 0, errors.Transport("replay %s: write past end of recording", r.name)
	}
	event := r.events[r.cursor]
	if !event.IsWrite {
		r.mu.Unlock()
		return 0, errors.Transport("replay %s: unexpected write, recording expects a read", r.name)
	}
	if !bytes.HasPrefix(event.Event, p) {
		r.mu.Unlock()
		return 0, errors.Transport("replay %s: write does not match recording\nexpected: %s\ngot:      %s",
			r.name, SprintByteHex(event.Event), SprintByteHex(p))
	}
	event.Event = event.Event[len(p):]
	if len(event.Event) > 0 {
		r.mu.Unlock()
		return len(p), nil
	}
	r.cursor++
	reads, errEvent := r.pendingReadsLocked()
	onData := r.onData
	onError := r.onError
	if !r.closed {
		for _, data := range reads {
			if onData != nil {
				buf := data
				r.replay <- func() { onData(buf) }
			}
		}
		if errEvent != nil && onError != nil {
			msg := errEvent.Error
			r.replay <- func() { onError(errors.Transport("replay %s: %s", r.name, msg)) }
		}
	}
	r.mu.Unlock()
	return len(p), nil
}

func (r *Recorder) pendingReadsLocked() ([][]byte, *Event) {
	var reads [][]byte
	for r.cursor < len(r.events) && !r.events[r.cursor].IsWrite {
		event := r.events[r.cursor]
		r.cursor++
		if event.Error != "" {
			return reads, event
		}
		reads = append(reads, event.Event)
	}
	return reads, nil
}

// SetHooks attaches the hooks. In record mode the hooks are wrapped so
// inbound traffic is logged before delivery; in replay mode they are
// stored and fed from the recording as writes complete.
func (r *Recorder) SetHooks(onData func(buf []byte), onError func(err error)) {
	r.mu.Lock()
	r.onData = onData
	r.onError = onError
	r.mu.Unlock()

	if r.channel == nil {
		return
	}
	r.channel.SetHooks(
		func(buf []byte) {
			r.record(buf, false)
			onData(buf)
		},
		func(err error) {
			r.recordError(err, false)
			if onError != nil {
				onError(err)
			}
		},
	)
}

// Err reports the wrapped channel's latched error; replay never latches
func (r *Recorder) Err() error {
	if r.channel != nil {
		return r.channel.Err()
	}
	return nil
}

// IsEncrypted reports the wrapped channel's encryption; replay is plain
func (r *Recorder) IsEncrypted() bool {
	if r.channel != nil {
		return r.channel.IsEncrypted()
	}
	return false
}

// Close flushes the recording in record mode and verifies the recording
// was fully consumed in replay mode.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cursor := r.cursor
	total := len(r.events)
	if r.replay != nil {
		close(r.replay)
	}
	r.mu.Unlock()

	if r.channel != nil {
		if err := r.writeRecording(); err != nil {
			log.Errorf("recording %s: %v", r.name, err)
		}
		return r.channel.Close()
	}
	if cursor < total {
		return fmt.Errorf("replay %s: closed with %d of %d events unconsumed", r.name, total-cursor, total)
	}
	return nil
}
