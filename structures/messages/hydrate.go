// Package messages contains the request and response messages of the
// protocol. Requests carry a signature plus encode-ready fields; responses
// additionally know how to hydrate themselves from decoded structures.
package messages

import (
	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
)

// Hydrator builds a typed message from the raw fields of a decoded structure.
type Hydrator func(fields []interface{}) (interface{}, error)

// Hydrators maps every server message signature to its hydrator
var Hydrators = map[int]Hydrator{
	SuccessMessageSignature: HydrateSuccessMessage,
	RecordMessageSignature:  HydrateRecordMessage,
	FailureMessageSignature: HydrateFailureMessage,
	IgnoredMessageSignature: HydrateIgnoredMessage,
}

func singleMetadataField(what string, fields []interface{}) (map[string]interface{}, error) {
	if len(fields) != 1 {
		return nil, errors.Protocol("%s message expects 1 field, got %d", what, len(fields))
	}
	if fields[0] == nil {
		return nil, nil
	}
	metadata, ok := fields[0].(map[string]interface{})
	if !ok {
		return nil, errors.Protocol("%s message metadata is not a map: %T", what, fields[0])
	}
	return metadata, nil
}
