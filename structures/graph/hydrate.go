// Package graph contains the graph entities carried inside RECORD
// messages: nodes, relationships and paths.
package graph

// Hydrator builds a typed value from the raw fields of a decoded structure.
type Hydrator func(fields []interface{}) (interface{}, error)

// Hydrators maps every graph structure signature to its hydrator. The
// decoder consults this table after decoding a structure's fields.
var Hydrators = map[int]Hydrator{
	NodeSignature:                HydrateNode,
	RelationshipSignature:        HydrateRelationship,
	UnboundRelationshipSignature: HydrateUnboundRelationship,
	PathSignature:                HydratePath,
}
