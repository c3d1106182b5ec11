// Package bolt implements the connection core of a client for graph
// databases speaking the Bolt protocol, version 1: handshake, chunked
// framing, PackStream serialization and pipelined observer dispatch.
package bolt

import (
	"encoding/binary"
	"os"

	"github.com/joknelid/golang-neo4j-bolt-connection/log"
)

func init() {
	log.SetLevel(os.Getenv("BOLT_DRIVER_LOG"))
}

const (
	// magicPreamble opens every handshake
	magicPreamble = 0x6060B017
	// protocolVersion is the single protocol version this core speaks
	protocolVersion = 1
	// httpSignature is the "HTTP" reply of a misdialed web endpoint
	httpSignature = 0x48545450

	// ClientID is the default user agent sent on INIT
	ClientID = "GolangBoltConnection/1.0"
)

// handshakeRequest builds the 20-byte handshake: the magic preamble and
// four proposed versions, version 1 first and three zero placeholders.
func handshakeRequest() []byte {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint32(buf[0:], magicPreamble)
	binary.BigEndian.PutUint32(buf[4:], protocolVersion)
	return buf
}

// Connect dials the address and starts the protocol handshake. The
// returned connection accepts requests immediately; they queue behind
// the handshake.
func Connect(addr string, config Config) (*Connection, error) {
	channel, err := DialChannel(addr, config)
	if err != nil {
		return nil, err
	}
	conn, err := NewConnection(channel, addr)
	if err != nil {
		channel.Close()
		return nil, err
	}
	return conn, nil
}

// ConnectInitialized dials, authenticates and blocks until the INIT
// response arrives.
func ConnectInitialized(addr string, config Config, authToken map[string]interface{}) (*Connection, error) {
	conn, err := Connect(addr, config)
	if err != nil {
		return nil, err
	}
	agent := config.UserAgent
	if agent == "" {
		agent = ClientID
	}
	if err := conn.Initialize(agent, authToken, StreamObserver{}); err != nil {
		conn.Close()
		return nil, err
	}
	initialized, err := conn.InitializationCompleted().Wait()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return initialized, nil
}
