package messages

const (
	// IgnoredMessageSignature is the signature byte for the IGNORED message
	IgnoredMessageSignature = 0x7E
)

// IgnoredMessage Represents an IGNORED message
type IgnoredMessage struct {
	Metadata map[string]interface{}
}

// NewIgnoredMessage Gets a new IgnoredMessage struct
func NewIgnoredMessage(metadata map[string]interface{}) IgnoredMessage {
	return IgnoredMessage{
		Metadata: metadata,
	}
}

// Signature gets the signature byte for the struct
func (i IgnoredMessage) Signature() int {
	return IgnoredMessageSignature
}

// AllFields gets the fields to encode for the struct
func (i IgnoredMessage) AllFields() []interface{} {
	return []interface{}{i.Metadata}
}

// HydrateIgnoredMessage builds an IgnoredMessage from the raw fields of a
// 0x7E structure. Some servers send IGNORED with no metadata field at all.
func HydrateIgnoredMessage(fields []interface{}) (interface{}, error) {
	if len(fields) == 0 {
		return NewIgnoredMessage(nil), nil
	}
	metadata, err := singleMetadataField("IGNORED", fields)
	if err != nil {
		return nil, err
	}
	return NewIgnoredMessage(metadata), nil
}
