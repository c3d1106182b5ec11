package encoding

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"
	"testing/quick"

	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures/graph"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures/messages"
)

func packValue(t *testing.T, value interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := NewPacker(&buf).Pack(value); err != nil {
		t.Fatalf("packing %+v: %v", value, err)
	}
	return buf.Bytes()
}

func roundTrip(t *testing.T, value interface{}) interface{} {
	t.Helper()
	decoded, err := NewUnpacker().Unpack(packValue(t, value))
	if err != nil {
		t.Fatalf("unpacking %+v: %v", value, err)
	}
	return decoded
}

func TestRoundTripInt(t *testing.T) {
	check := func(val int64) bool {
		return roundTrip(t, val) == val
	}
	if err := quick.Check(check, nil); err != nil {
		t.Error(err)
	}

	// Width boundaries.
	for _, val := range []int64{
		0, 1, -1, -16, -17, 127, 128, -128, -129,
		32767, 32768, -32768, -32769,
		2147483647, 2147483648, -2147483648, -2147483649,
		math.MaxInt64, math.MinInt64,
	} {
		if got := roundTrip(t, val); got != val {
			t.Errorf("round trip of %d gave %v", val, got)
		}
	}
}

func TestPackIntWidths(t *testing.T) {
	cases := []struct {
		val  int64
		size int
	}{
		{0, 1},
		{-16, 1},
		{127, 1},
		{-17, 2},
		{-128, 2},
		{128, 3},
		{32767, 3},
		{32768, 5},
		{2147483647, 5},
		{2147483648, 9},
		{math.MinInt64, 9},
	}
	for _, tc := range cases {
		if got := len(packValue(t, tc.val)); got != tc.size {
			t.Errorf("%d packed to %d bytes, expected %d", tc.val, got, tc.size)
		}
	}
}

func TestRoundTripFloat(t *testing.T) {
	check := func(val float64) bool {
		return roundTrip(t, val) == val
	}
	if err := quick.Check(check, nil); err != nil {
		t.Error(err)
	}
}

func TestRoundTripString(t *testing.T) {
	check := func(val string) bool {
		return roundTrip(t, val) == val
	}
	if err := quick.Check(check, nil); err != nil {
		t.Error(err)
	}

	for _, val := range []string{
		"",
		"short",
		strings.Repeat("a", 15),
		strings.Repeat("b", 16),
		strings.Repeat("c", 255),
		strings.Repeat("d", 256),
		strings.Repeat("e", 65535),
		strings.Repeat("f", 65536),
	} {
		if got := roundTrip(t, val); got != val {
			t.Errorf("round trip of %d-byte string failed", len(val))
		}
	}
}

func TestRoundTripBytes(t *testing.T) {
	check := func(val []byte) bool {
		if len(val) == 0 {
			return true
		}
		return bytes.Equal(roundTrip(t, val).([]byte), val)
	}
	if err := quick.Check(check, nil); err != nil {
		t.Error(err)
	}
}

func TestRoundTripBoolAndNil(t *testing.T) {
	if got := roundTrip(t, true); got != true {
		t.Errorf("round trip of true gave %v", got)
	}
	if got := roundTrip(t, false); got != false {
		t.Errorf("round trip of false gave %v", got)
	}
	if got := roundTrip(t, nil); got != nil {
		t.Errorf("round trip of nil gave %v", got)
	}
}

func TestRoundTripCollections(t *testing.T) {
	list := []interface{}{int64(1), "two", 3.0, true, nil}
	if got := roundTrip(t, list); !reflect.DeepEqual(got, list) {
		t.Errorf("round trip of list gave %+v", got)
	}

	m := map[string]interface{}{
		"a": int64(1),
		"b": "two",
		"c": []interface{}{int64(3), int64(4)},
		"d": map[string]interface{}{"nested": true},
	}
	if got := roundTrip(t, m); !reflect.DeepEqual(got, m) {
		t.Errorf("round trip of map gave %+v", got)
	}

	// Length markers above the tiny range.
	big := make([]interface{}, 300)
	for i := range big {
		big[i] = int64(i)
	}
	if got := roundTrip(t, big); !reflect.DeepEqual(got, big) {
		t.Error("round trip of 300-item list failed")
	}
}

func TestRoundTripNode(t *testing.T) {
	var buf bytes.Buffer
	node := graph.Node{
		NodeIdentity: 42,
		Labels:       []string{"Person"},
		Properties:   map[string]interface{}{"name": "alice", "age": int64(30)},
	}
	if err := NewPacker(&buf).PackStructure(node); err != nil {
		t.Fatalf("packing node: %v", err)
	}
	decoded, err := NewUnpacker().Unpack(buf.Bytes())
	if err != nil {
		t.Fatalf("unpacking node: %v", err)
	}
	got, ok := decoded.(graph.Node)
	if !ok {
		t.Fatalf("expected graph.Node, got %T", decoded)
	}
	if !reflect.DeepEqual(got, node) {
		t.Errorf("round trip gave %+v, expected %+v", got, node)
	}
}

func TestRoundTripRecordWithPath(t *testing.T) {
	nodes := []interface{}{
		graph.Node{NodeIdentity: 1, Labels: []string{"A"}, Properties: map[string]interface{}{}},
		graph.Node{NodeIdentity: 2, Labels: []string{"B"}, Properties: map[string]interface{}{}},
	}
	rels := []interface{}{
		graph.UnboundRelationship{RelIdentity: 9, Type: "KNOWS", Properties: map[string]interface{}{}},
	}
	sequence := []interface{}{int64(1), int64(1)}

	var buf bytes.Buffer
	record := messages.NewRecordMessage([]interface{}{
		&structures.Generic{Sig: graph.PathSignature, Fields: []interface{}{nodes, rels, sequence}},
	})
	// Pack the path through its raw generic form so unpacking exercises
	// the hydrator chain.
	if err := NewPacker(&buf).PackStructure(record); err != nil {
		t.Fatalf("packing record: %v", err)
	}

	decoded, err := NewUnpacker().Unpack(buf.Bytes())
	if err != nil {
		t.Fatalf("unpacking record: %v", err)
	}
	msg, ok := decoded.(messages.RecordMessage)
	if !ok {
		t.Fatalf("expected RecordMessage, got %T", decoded)
	}
	path, ok := msg.Fields[0].(graph.Path)
	if !ok {
		t.Fatalf("expected graph.Path, got %T", msg.Fields[0])
	}
	if len(path.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(path.Segments))
	}
	seg := path.Segments[0]
	if seg.Start.NodeIdentity != 1 || seg.End.NodeIdentity != 2 {
		t.Errorf("segment runs %d -> %d, expected 1 -> 2", seg.Start.NodeIdentity, seg.End.NodeIdentity)
	}
	if seg.Relationship.StartNodeIdentity != 1 || seg.Relationship.EndNodeIdentity != 2 {
		t.Errorf("relationship bound %d -> %d, expected 1 -> 2",
			seg.Relationship.StartNodeIdentity, seg.Relationship.EndNodeIdentity)
	}
}

func TestUnknownSignatureDecodesAsGeneric(t *testing.T) {
	var buf bytes.Buffer
	unknown := &structures.Generic{Sig: 0x66, Fields: []interface{}{"future", int64(1)}}
	if err := NewPacker(&buf).PackStructure(unknown); err != nil {
		t.Fatalf("packing generic: %v", err)
	}
	decoded, err := NewUnpacker().Unpack(buf.Bytes())
	if err != nil {
		t.Fatalf("unpacking generic: %v", err)
	}
	got, ok := decoded.(*structures.Generic)
	if !ok {
		t.Fatalf("expected *structures.Generic, got %T", decoded)
	}
	if got.Sig != 0x66 || !reflect.DeepEqual(got.Fields, unknown.Fields) {
		t.Errorf("round trip gave %+v", got)
	}
}

func TestPackBytesGate(t *testing.T) {
	var buf bytes.Buffer
	packer := NewPacker(&buf)
	packer.SetBytesSupport(false)

	err := packer.Pack([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected serialization error")
	}
	boltErr, ok := err.(*errors.Error)
	if !ok || boltErr.Kind() != errors.KindSerialization {
		t.Errorf("expected serialization kind, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("packer wrote %d bytes despite rejection", buf.Len())
	}

	packer.SetBytesSupport(true)
	if err := packer.Pack([]byte{1, 2, 3}); err != nil {
		t.Fatalf("packing bytes with support enabled: %v", err)
	}
}

func TestPackUnsupportedType(t *testing.T) {
	var buf bytes.Buffer
	err := NewPacker(&buf).Pack(struct{ X int }{1})
	if err == nil {
		t.Fatal("expected serialization error")
	}
	boltErr, ok := err.(*errors.Error)
	if !ok || boltErr.Kind() != errors.KindSerialization {
		t.Errorf("expected serialization kind, got %v", err)
	}
}

func TestUnpackRejectsTrailingBytes(t *testing.T) {
	data := append(packValue(t, int64(1)), 0x01)
	if _, err := NewUnpacker().Unpack(data); err == nil {
		t.Error("expected error for trailing bytes")
	}
}

func TestUnpackRejectsTruncatedMessage(t *testing.T) {
	data := packValue(t, "hello world")
	if _, err := NewUnpacker().Unpack(data[:len(data)-3]); err == nil {
		t.Error("expected error for truncated message")
	}
}
