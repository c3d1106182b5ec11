package bolt

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joknelid/golang-neo4j-bolt-connection/structures/messages"
)

func copyEvents(events []*Event) []*Event {
	copied := make([]*Event, len(events))
	for i, event := range events {
		dup := *event
		dup.Event = append([]byte(nil), event.Event...)
		copied[i] = &dup
	}
	return copied
}

// recordSession drives a full init, run and pull exchange over a
// scripted channel wrapped in a recorder and returns the recording.
func recordSession(t *testing.T) []*Event {
	t.Helper()
	channel := &scriptedChannel{}
	recorder := NewRecorder(t.Name(), channel)
	conn, err := NewConnection(recorder, "test:7687")
	require.NoError(t, err)

	channel.serverSends(versionOneReply)

	require.NoError(t, conn.Initialize(ClientID, messages.NoAuth(), StreamObserver{}))
	channel.serverSends(serverMessage(t, messages.NewSuccessMessage(map[string]interface{}{
		"server": "Neo4j/3.4.0",
	})))
	_, err = conn.InitializationCompleted().Wait()
	require.NoError(t, err)

	require.NoError(t, conn.Run("RETURN 1", nil, StreamObserver{}))
	require.NoError(t, conn.PullAll(StreamObserver{}))
	require.NoError(t, conn.Sync())
	channel.serverSends(serverMessage(t, messages.NewSuccessMessage(map[string]interface{}{
		"fields": []interface{}{"1"},
	})))
	channel.serverSends(serverMessage(t, messages.NewRecordMessage([]interface{}{int64(1)})))
	channel.serverSends(serverMessage(t, messages.NewSuccessMessage(map[string]interface{}{})))

	require.NoError(t, conn.Close())
	return recorder.events
}

func TestRecorderCapturesBothDirections(t *testing.T) {
	events := recordSession(t)
	require.NotEmpty(t, events)

	var writes, reads int
	for _, event := range events {
		if event.IsWrite {
			writes++
		} else {
			reads++
		}
		require.Empty(t, event.Error)
	}
	require.GreaterOrEqual(t, writes, 3)
	require.GreaterOrEqual(t, reads, 3)

	require.True(t, events[0].IsWrite)
	require.Equal(t, handshakeRequest(), events[0].Event)
	require.False(t, events[1].IsWrite)
	require.Equal(t, versionOneReply, events[1].Event)
}

func TestReplayServesRecordedSession(t *testing.T) {
	replayer := &Recorder{name: t.Name(), events: copyEvents(recordSession(t))}
	replayer.startReplay()

	conn, err := NewConnection(replayer, "test:7687")
	require.NoError(t, err)

	require.NoError(t, conn.Initialize(ClientID, messages.NoAuth(), StreamObserver{}))
	initialized, err := conn.InitializationCompleted().Wait()
	require.NoError(t, err)
	require.Equal(t, "Neo4j/3.4.0", initialized.ServerAgent())

	var records [][]interface{}
	done := make(chan struct{})
	require.NoError(t, conn.Run("RETURN 1", nil, StreamObserver{
		OnError: func(err error) { t.Errorf("run failed: %v", err) },
	}))
	require.NoError(t, conn.PullAll(StreamObserver{
		OnNext:      func(fields []interface{}) { records = append(records, fields) },
		OnCompleted: func(metadata map[string]interface{}) { close(done) },
		OnError:     func(err error) { t.Errorf("pull failed: %v", err) },
	}))
	require.NoError(t, conn.Sync())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replayed results")
	}
	require.Equal(t, [][]interface{}{{int64(1)}}, records)
	require.NoError(t, conn.Close())
}

func TestReplayRejectsMismatchedWrite(t *testing.T) {
	replayer := &Recorder{name: t.Name(), events: copyEvents(recordSession(t))}
	replayer.startReplay()
	defer replayer.Close()

	_, err := replayer.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not match")
}

func TestReplayCloseReportsUnconsumedEvents(t *testing.T) {
	replayer := &Recorder{name: t.Name(), events: copyEvents(recordSession(t))}
	replayer.startReplay()

	err := replayer.Close()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unconsumed")
}

func TestRecordingRoundTripsThroughDisk(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)
	t.Setenv("RECORD_OUTPUT", "1")

	channel := &scriptedChannel{}
	recorder := NewRecorder("roundtrip", channel)
	_, err = recorder.Write(handshakeRequest())
	require.NoError(t, err)
	recorder.SetHooks(func(buf []byte) {}, nil)
	channel.serverSends(versionOneReply)
	require.NoError(t, recorder.Close())

	loaded, err := NewReplayer("roundtrip")
	require.NoError(t, err)
	require.Len(t, loaded.events, 2)
	require.True(t, loaded.events[0].IsWrite)
	require.Equal(t, handshakeRequest(), loaded.events[0].Event)
	require.Equal(t, versionOneReply, loaded.events[1].Event)

	replayed := make(chan []byte, 1)
	loaded.SetHooks(func(buf []byte) { replayed <- buf }, nil)
	_, err = loaded.Write(handshakeRequest())
	require.NoError(t, err)
	select {
	case buf := <-replayed:
		require.Equal(t, versionOneReply, buf)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replayed handshake reply")
	}
	require.NoError(t, loaded.Close())
}
