package messages

import (
	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
)

const (
	// RecordMessageSignature is the signature byte for the RECORD message
	RecordMessageSignature = 0x71
)

// RecordMessage Represents an RECORD message
type RecordMessage struct {
	Fields []interface{}
}

// NewRecordMessage Gets a new RecordMessage struct
func NewRecordMessage(fields []interface{}) RecordMessage {
	return RecordMessage{
		Fields: fields,
	}
}

// Signature gets the signature byte for the struct
func (i RecordMessage) Signature() int {
	return RecordMessageSignature
}

// AllFields gets the fields to encode for the struct
func (i RecordMessage) AllFields() []interface{} {
	return []interface{}{i.Fields}
}

// HydrateRecordMessage builds a RecordMessage from the raw fields of a 0x71 structure
func HydrateRecordMessage(fields []interface{}) (interface{}, error) {
	if len(fields) != 1 {
		return nil, errors.Protocol("RECORD message expects 1 field, got %d", len(fields))
	}
	values, ok := fields[0].([]interface{})
	if !ok {
		return nil, errors.Protocol("RECORD message field is not a list: %T", fields[0])
	}
	return NewRecordMessage(values), nil
}
