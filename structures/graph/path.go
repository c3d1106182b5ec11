package graph

const (
	// PathSignature is the signature byte for a Path object
	PathSignature = 0x50
)

// Segment is one traversal step of a Path: a start node, the bound
// relationship crossed, and the node arrived at.
type Segment struct {
	Start        Node
	Relationship Relationship
	End          Node
}

// Path Represents a Path structure. The wire form carries nodes, unbound
// relationships and an alternating (relIndex, nextNodeIndex) sequence;
// hydration binds every relationship the sequence traverses and
// precomputes the segments. Relationships the sequence never visits keep
// zero endpoints.
type Path struct {
	Nodes         []Node
	Relationships []Relationship
	Sequence      []int
	Segments      []Segment
}

// Signature gets the signature byte for the struct
func (p Path) Signature() int {
	return PathSignature
}

// AllFields gets the fields to encode for the struct
func (p Path) AllFields() []interface{} {
	nodes := make([]interface{}, len(p.Nodes))
	for i, node := range p.Nodes {
		nodes[i] = node
	}
	relationships := make([]interface{}, len(p.Relationships))
	for i, relationship := range p.Relationships {
		relationships[i] = UnboundRelationship{
			RelIdentity: relationship.RelIdentity,
			Type:        relationship.Type,
			Properties:  relationship.Properties,
		}
	}
	sequences := make([]interface{}, len(p.Sequence))
	for i, sequence := range p.Sequence {
		sequences[i] = sequence
	}
	return []interface{}{nodes, relationships, sequences}
}

// Start returns the first node of the path
func (p Path) Start() Node {
	return p.Nodes[0]
}

// End returns the node the last segment arrives at
func (p Path) End() Node {
	if len(p.Segments) == 0 {
		return p.Nodes[0]
	}
	return p.Segments[len(p.Segments)-1].End
}

// HydratePath builds a Path from the raw fields of a 0x50 structure and
// performs the binding pass. Rel indices in the sequence are 1-based with
// the sign carrying direction: positive runs prev->next, negative runs
// next->prev. Zero is not a valid rel index.
func HydratePath(fields []interface{}) (interface{}, error) {
	if len(fields) != 3 {
		return nil, errFieldCount("Path", 3, fields)
	}
	nodes, err := asNodeSlice("Path nodes", fields[0])
	if err != nil {
		return nil, err
	}
	rels, err := asUnboundRelationshipSlice("Path relationships", fields[1])
	if err != nil {
		return nil, err
	}
	sequence, err := asIntSlice("Path sequence", fields[2])
	if err != nil {
		return nil, err
	}

	if len(nodes) == 0 {
		return nil, errHydrate("Path carries no nodes")
	}
	if len(sequence)%2 != 0 {
		return nil, errHydrate("Path sequence has odd length %d", len(sequence))
	}

	// Relationships the sequence never visits keep zero endpoints.
	bound := make([]Relationship, len(rels))
	for i, rel := range rels {
		bound[i] = rel.bind(0, 0)
	}
	segments := make([]Segment, 0, len(sequence)/2)

	prev := nodes[0]
	for i := 0; i < len(sequence); i += 2 {
		relIndex := sequence[i]
		nodeIndex := sequence[i+1]

		if relIndex == 0 {
			return nil, errHydrate("Path sequence rel index is zero at position %d", i)
		}
		relOffset := relIndex
		if relOffset < 0 {
			relOffset = -relOffset
		}
		if relOffset > len(rels) {
			return nil, errHydrate("Path sequence rel index %d out of range of %d relationships", relIndex, len(rels))
		}
		if nodeIndex < 0 || nodeIndex >= len(nodes) {
			return nil, errHydrate("Path sequence node index %d out of range of %d nodes", nodeIndex, len(nodes))
		}

		next := nodes[nodeIndex]
		var rel Relationship
		if relIndex > 0 {
			rel = rels[relOffset-1].bind(prev.NodeIdentity, next.NodeIdentity)
		} else {
			rel = rels[relOffset-1].bind(next.NodeIdentity, prev.NodeIdentity)
		}
		bound[relOffset-1] = rel

		segments = append(segments, Segment{Start: prev, Relationship: rel, End: next})
		prev = next
	}

	return Path{
		Nodes:         nodes,
		Relationships: bound,
		Sequence:      sequence,
		Segments:      segments,
	}, nil
}
