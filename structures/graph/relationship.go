package graph

const (
	// RelationshipSignature is the signature byte for a Relationship object
	RelationshipSignature = 0x52
)

// Relationship Represents a Relationship structure
type Relationship struct {
	RelIdentity       int64
	StartNodeIdentity int64
	EndNodeIdentity   int64
	Type              string
	Properties        map[string]interface{}
}

// Signature gets the signature byte for the struct
func (r Relationship) Signature() int {
	return RelationshipSignature
}

// AllFields gets the fields to encode for the struct
func (r Relationship) AllFields() []interface{} {
	return []interface{}{r.RelIdentity, r.StartNodeIdentity, r.EndNodeIdentity, r.Type, r.Properties}
}

// HydrateRelationship builds a Relationship from the raw fields of a 0x52 structure
func HydrateRelationship(fields []interface{}) (interface{}, error) {
	if len(fields) != 5 {
		return nil, errFieldCount("Relationship", 5, fields)
	}
	identity, err := asInt64("Relationship identity", fields[0])
	if err != nil {
		return nil, err
	}
	start, err := asInt64("Relationship start node", fields[1])
	if err != nil {
		return nil, err
	}
	end, err := asInt64("Relationship end node", fields[2])
	if err != nil {
		return nil, err
	}
	relType, err := asString("Relationship type", fields[3])
	if err != nil {
		return nil, err
	}
	properties, err := asMap("Relationship properties", fields[4])
	if err != nil {
		return nil, err
	}
	return Relationship{
		RelIdentity:       identity,
		StartNodeIdentity: start,
		EndNodeIdentity:   end,
		Type:              relType,
		Properties:        properties,
	}, nil
}
