package graph

const (
	// NodeSignature is the signature byte for a Node object
	NodeSignature = 0x4E
)

// Node Represents a Node structure
type Node struct {
	NodeIdentity int64
	Labels       []string
	Properties   map[string]interface{}
}

// Signature gets the signature byte for the struct
func (n Node) Signature() int {
	return NodeSignature
}

// AllFields gets the fields to encode for the struct
func (n Node) AllFields() []interface{} {
	labels := make([]interface{}, len(n.Labels))
	for i, label := range n.Labels {
		labels[i] = label
	}
	return []interface{}{n.NodeIdentity, labels, n.Properties}
}

// HydrateNode builds a Node from the raw fields of a 0x4E structure
func HydrateNode(fields []interface{}) (interface{}, error) {
	if len(fields) != 3 {
		return nil, errFieldCount("Node", 3, fields)
	}
	identity, err := asInt64("Node identity", fields[0])
	if err != nil {
		return nil, err
	}
	labels, err := asStringSlice("Node labels", fields[1])
	if err != nil {
		return nil, err
	}
	properties, err := asMap("Node properties", fields[2])
	if err != nil {
		return nil, err
	}
	return Node{
		NodeIdentity: identity,
		Labels:       labels,
		Properties:   properties,
	}, nil
}
