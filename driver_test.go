package bolt

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joknelid/golang-neo4j-bolt-connection/encoding"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures/messages"
)

// fakeBoltServer speaks enough of the protocol over real TCP to drive
// the dialing path end to end: it agrees to version 1 and answers every
// request with a canned response.
type fakeBoltServer struct {
	t        *testing.T
	listener net.Listener

	mu       sync.Mutex
	requests []int
}

func newFakeBoltServer(t *testing.T) *fakeBoltServer {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeBoltServer{t: t, listener: listener}
	go s.acceptLoop()
	t.Cleanup(func() { listener.Close() })
	return s
}

func (s *fakeBoltServer) addr() string {
	return s.listener.Addr().String()
}

func (s *fakeBoltServer) seenRequests() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.requests...)
}

func (s *fakeBoltServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *fakeBoltServer) serve(conn net.Conn) {
	defer conn.Close()

	handshake := make([]byte, 20)
	if _, err := io.ReadFull(conn, handshake); err != nil {
		return
	}
	if binary.BigEndian.Uint32(handshake) != magicPreamble {
		return
	}
	if _, err := conn.Write([]byte{0x00, 0x00, 0x00, 0x01}); err != nil {
		return
	}

	unpacker := encoding.NewUnpacker()
	dechunker := encoding.NewDechunker(func(message []byte) error {
		request, err := unpacker.Unpack(message)
		if err != nil {
			return err
		}
		return s.respond(conn, request.(structures.Structure))
	})

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if err := dechunker.Feed(buf[:n]); err != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *fakeBoltServer) respond(conn net.Conn, request structures.Structure) error {
	s.mu.Lock()
	s.requests = append(s.requests, request.Signature())
	s.mu.Unlock()

	send := func(msgs ...structures.Structure) error {
		chunker := encoding.NewChunker(conn)
		packer := encoding.NewPacker(chunker)
		for _, msg := range msgs {
			if err := packer.PackStructure(msg); err != nil {
				return err
			}
			chunker.CloseMessage()
		}
		return chunker.Flush()
	}

	switch request.Signature() {
	case messages.InitMessageSignature:
		return send(messages.NewSuccessMessage(map[string]interface{}{
			"server": "Neo4j/3.4.0",
		}))
	case messages.RunMessageSignature:
		return send(messages.NewSuccessMessage(map[string]interface{}{
			"fields": []interface{}{"n"},
		}))
	case messages.PullAllMessageSignature:
		return send(
			messages.NewRecordMessage([]interface{}{int64(42)}),
			messages.NewSuccessMessage(map[string]interface{}{"type": "r"}),
		)
	default:
		return send(messages.NewSuccessMessage(map[string]interface{}{}))
	}
}

func testConfig() Config {
	return Config{DialTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
}

func TestConnectInitializedAgainstServer(t *testing.T) {
	server := newFakeBoltServer(t)

	conn, err := ConnectInitialized(server.addr(), testConfig(), messages.BasicAuth("neo4j", "secret"))
	require.NoError(t, err)
	defer conn.Close()

	require.True(t, conn.IsOpen())
	require.False(t, conn.IsEncrypted())
	require.Equal(t, "Neo4j/3.4.0", conn.ServerAgent())
}

func TestRunAndPullAllAgainstServer(t *testing.T) {
	server := newFakeBoltServer(t)

	conn, err := ConnectInitialized(server.addr(), testConfig(), messages.NoAuth())
	require.NoError(t, err)
	defer conn.Close()

	var records [][]interface{}
	var runMeta, pullMeta map[string]interface{}
	done := make(chan struct{})

	err = conn.Run("RETURN 42 AS n", nil, StreamObserver{
		OnCompleted: func(metadata map[string]interface{}) { runMeta = metadata },
		OnError:     func(err error) { t.Errorf("run failed: %v", err) },
	})
	require.NoError(t, err)
	err = conn.PullAll(StreamObserver{
		OnNext: func(fields []interface{}) { records = append(records, fields) },
		OnCompleted: func(metadata map[string]interface{}) {
			pullMeta = metadata
			close(done)
		},
		OnError: func(err error) { t.Errorf("pull failed: %v", err) },
	})
	require.NoError(t, err)
	require.NoError(t, conn.Sync())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for results")
	}

	require.Equal(t, []interface{}{"n"}, runMeta["fields"])
	require.Equal(t, [][]interface{}{{int64(42)}}, records)
	require.Equal(t, "r", pullMeta["type"])
}

func TestConnectRefusedAddress(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = ConnectInitialized(addr, testConfig(), messages.NoAuth())
	require.Error(t, err)
}

func TestDriverPoolReusesConnections(t *testing.T) {
	server := newFakeBoltServer(t)
	ctx := context.Background()

	p := NewDriverPool(server.addr(), testConfig(), messages.NoAuth(), 2)
	defer p.Close(ctx)

	first, err := p.Borrow(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Return(ctx, first))

	second, err := p.Borrow(ctx)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.NoError(t, p.Return(ctx, second))

	inits := 0
	for _, sig := range server.seenRequests() {
		if sig == messages.InitMessageSignature {
			inits++
		}
	}
	require.Equal(t, 1, inits)
}

func TestDriverPoolDiscardsBrokenConnections(t *testing.T) {
	server := newFakeBoltServer(t)
	ctx := context.Background()

	p := NewDriverPool(server.addr(), testConfig(), messages.NoAuth(), 1)
	defer p.Close(ctx)

	conn, err := p.Borrow(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.False(t, conn.IsOpen())
	require.NoError(t, p.Return(ctx, conn))

	replacement, err := p.Borrow(ctx)
	require.NoError(t, err)
	require.NotSame(t, conn, replacement)
	require.True(t, replacement.IsOpen())
	require.NoError(t, p.Return(ctx, replacement))
}
