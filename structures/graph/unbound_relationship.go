package graph

const (
	// UnboundRelationshipSignature is the signature byte for a UnboundRelationship object
	UnboundRelationshipSignature = 0x72
)

// UnboundRelationship Represents a UnboundRelationship structure. It
// carries no endpoints; those are inferred during Path hydration.
type UnboundRelationship struct {
	RelIdentity int64
	Type        string
	Properties  map[string]interface{}
}

// Signature gets the signature byte for the struct
func (r UnboundRelationship) Signature() int {
	return UnboundRelationshipSignature
}

// AllFields gets the fields to encode for the struct
func (r UnboundRelationship) AllFields() []interface{} {
	return []interface{}{r.RelIdentity, r.Type, r.Properties}
}

// bind attaches endpoints, turning the unbound relationship into a full one
func (r UnboundRelationship) bind(start, end int64) Relationship {
	return Relationship{
		RelIdentity:       r.RelIdentity,
		StartNodeIdentity: start,
		EndNodeIdentity:   end,
		Type:              r.Type,
		Properties:        r.Properties,
	}
}

// HydrateUnboundRelationship builds an UnboundRelationship from the raw fields of a 0x72 structure
func HydrateUnboundRelationship(fields []interface{}) (interface{}, error) {
	if len(fields) != 3 {
		return nil, errFieldCount("UnboundRelationship", 3, fields)
	}
	identity, err := asInt64("UnboundRelationship identity", fields[0])
	if err != nil {
		return nil, err
	}
	relType, err := asString("UnboundRelationship type", fields[1])
	if err != nil {
		return nil, err
	}
	properties, err := asMap("UnboundRelationship properties", fields[2])
	if err != nil {
		return nil, err
	}
	return UnboundRelationship{
		RelIdentity: identity,
		Type:        relType,
		Properties:  properties,
	}, nil
}
