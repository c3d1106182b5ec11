package messages

const (
	// InitMessageSignature is the signature byte for the INIT message
	InitMessageSignature = 0x01
)

// InitMessage Represents an INIT message
type InitMessage struct {
	clientName string
	authToken  map[string]interface{}
}

// NewInitMessage Gets a new InitMessage struct. The auth token travels
// as-is; callers build it with BasicAuth or NoAuth.
func NewInitMessage(clientName string, authToken map[string]interface{}) InitMessage {
	return InitMessage{
		clientName: clientName,
		authToken:  authToken,
	}
}

// BasicAuth builds a basic-scheme auth token
func BasicAuth(principal, credentials string) map[string]interface{} {
	return map[string]interface{}{
		"scheme":      "basic",
		"principal":   principal,
		"credentials": credentials,
	}
}

// NoAuth builds a none-scheme auth token
func NoAuth() map[string]interface{} {
	return map[string]interface{}{
		"scheme": "none",
	}
}

// Signature gets the signature byte for the struct
func (i InitMessage) Signature() int {
	return InitMessageSignature
}

// AllFields gets the fields to encode for the struct
func (i InitMessage) AllFields() []interface{} {
	return []interface{}{i.clientName, i.authToken}
}
