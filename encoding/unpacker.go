package encoding

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures/graph"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures/messages"
)

// Hydrator builds a typed value from the raw fields of a decoded structure
type Hydrator func(fields []interface{}) (interface{}, error)

// Unpacker deserializes values from reassembled message bytes. Integers
// always come back as int64 regardless of their width on the wire.
// Structures whose signature has a registered hydrator come back typed;
// anything else comes back as *structures.Generic.
type Unpacker struct {
	hydrators map[int]Hydrator
}

// NewUnpacker Creates a new Unpacker with the graph and message
// hydrators registered
func NewUnpacker() *Unpacker {
	hydrators := map[int]Hydrator{}
	for sig, hydrate := range graph.Hydrators {
		hydrators[sig] = Hydrator(hydrate)
	}
	for sig, hydrate := range messages.Hydrators {
		hydrators[sig] = Hydrator(hydrate)
	}
	return &Unpacker{hydrators: hydrators}
}

// Unpack deserializes exactly one value from the message and refuses
// trailing bytes.
func (u *Unpacker) Unpack(message []byte) (interface{}, error) {
	r := bytes.NewReader(message)
	value, err := u.unpack(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Protocol("message has %d trailing bytes after value", r.Len())
	}
	return value, nil
}

func (u *Unpacker) unpack(r *bytes.Reader) (interface{}, error) {
	marker, err := r.ReadByte()
	if err != nil {
		return nil, errors.Protocol("message truncated reading marker")
	}

	switch {
	case marker <= 0x7F:
		return int64(marker), nil
	case marker >= 0xF0:
		return int64(int8(marker)), nil
	case marker >= TinyStringMarker && marker < TinyStringMarker+0x10:
		return u.unpackString(r, int(marker-TinyStringMarker))
	case marker >= TinySliceMarker && marker < TinySliceMarker+0x10:
		return u.unpackSlice(r, int(marker-TinySliceMarker))
	case marker >= TinyMapMarker && marker < TinyMapMarker+0x10:
		return u.unpackMap(r, int(marker-TinyMapMarker))
	case marker >= TinyStructMarker && marker < TinyStructMarker+0x10:
		return u.unpackStructure(r, int(marker-TinyStructMarker))
	}

	switch marker {
	case NilMarker:
		return nil, nil
	case TrueMarker:
		return true, nil
	case FalseMarker:
		return false, nil
	case FloatMarker:
		bits, err := u.readUint64(r)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case Int8Marker:
		b, err := r.ReadByte()
		if err != nil {
			return nil, errors.Protocol("message truncated reading int8")
		}
		return int64(int8(b)), nil
	case Int16Marker:
		v, err := u.readUint16(r)
		if err != nil {
			return nil, err
		}
		return int64(int16(v)), nil
	case Int32Marker:
		v, err := u.readUint32(r)
		if err != nil {
			return nil, err
		}
		return int64(int32(v)), nil
	case Int64Marker:
		v, err := u.readUint64(r)
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case String8Marker:
		length, err := u.readLength8(r)
		if err != nil {
			return nil, err
		}
		return u.unpackString(r, length)
	case String16Marker:
		length, err := u.readLength16(r)
		if err != nil {
			return nil, err
		}
		return u.unpackString(r, length)
	case String32Marker:
		length, err := u.readLength32(r)
		if err != nil {
			return nil, err
		}
		return u.unpackString(r, length)
	case Bytes8Marker:
		length, err := u.readLength8(r)
		if err != nil {
			return nil, err
		}
		return u.unpackBytes(r, length)
	case Bytes16Marker:
		length, err := u.readLength16(r)
		if err != nil {
			return nil, err
		}
		return u.unpackBytes(r, length)
	case Bytes32Marker:
		length, err := u.readLength32(r)
		if err != nil {
			return nil, err
		}
		return u.unpackBytes(r, length)
	case Slice8Marker:
		length, err := u.readLength8(r)
		if err != nil {
			return nil, err
		}
		return u.unpackSlice(r, length)
	case Slice16Marker:
		length, err := u.readLength16(r)
		if err != nil {
			return nil, err
		}
		return u.unpackSlice(r, length)
	case Slice32Marker:
		length, err := u.readLength32(r)
		if err != nil {
			return nil, err
		}
		return u.unpackSlice(r, length)
	case Map8Marker:
		length, err := u.readLength8(r)
		if err != nil {
			return nil, err
		}
		return u.unpackMap(r, length)
	case Map16Marker:
		length, err := u.readLength16(r)
		if err != nil {
			return nil, err
		}
		return u.unpackMap(r, length)
	case Map32Marker:
		length, err := u.readLength32(r)
		if err != nil {
			return nil, err
		}
		return u.unpackMap(r, length)
	case Struct8Marker:
		length, err := u.readLength8(r)
		if err != nil {
			return nil, err
		}
		return u.unpackStructure(r, length)
	case Struct16Marker:
		length, err := u.readLength16(r)
		if err != nil {
			return nil, err
		}
		return u.unpackStructure(r, length)
	default:
		return nil, errors.Protocol("unrecognized marker byte: 0x%02X", marker)
	}
}

func (u *Unpacker) readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.Protocol("message truncated reading 2 bytes")
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (u *Unpacker) readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.Protocol("message truncated reading 4 bytes")
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (u *Unpacker) readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.Protocol("message truncated reading 8 bytes")
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (u *Unpacker) readLength8(r *bytes.Reader) (int, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, errors.Protocol("message truncated reading length")
	}
	return int(b), nil
}

func (u *Unpacker) readLength16(r *bytes.Reader) (int, error) {
	v, err := u.readUint16(r)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (u *Unpacker) readLength32(r *bytes.Reader) (int, error) {
	v, err := u.readUint32(r)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (u *Unpacker) unpackString(r *bytes.Reader, length int) (string, error) {
	if length == 0 {
		return "", nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Protocol("message truncated reading %d string bytes", length)
	}
	return string(buf), nil
}

func (u *Unpacker) unpackBytes(r *bytes.Reader, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Protocol("message truncated reading %d bytes", length)
	}
	return buf, nil
}

func (u *Unpacker) unpackSlice(r *bytes.Reader, length int) ([]interface{}, error) {
	items := make([]interface{}, length)
	for i := 0; i < length; i++ {
		item, err := u.unpack(r)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

func (u *Unpacker) unpackMap(r *bytes.Reader, length int) (map[string]interface{}, error) {
	out := make(map[string]interface{}, length)
	for i := 0; i < length; i++ {
		rawKey, err := u.unpack(r)
		if err != nil {
			return nil, err
		}
		key, ok := rawKey.(string)
		if !ok {
			return nil, errors.Protocol("map key is not a string: %T", rawKey)
		}
		value, err := u.unpack(r)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

func (u *Unpacker) unpackStructure(r *bytes.Reader, length int) (interface{}, error) {
	signature, err := r.ReadByte()
	if err != nil {
		return nil, errors.Protocol("message truncated reading structure signature")
	}
	fields := make([]interface{}, length)
	for i := 0; i < length; i++ {
		field, err := u.unpack(r)
		if err != nil {
			return nil, err
		}
		fields[i] = field
	}
	if hydrate, ok := u.hydrators[int(signature)]; ok {
		return hydrate(fields)
	}
	return &structures.Generic{Sig: int(signature), Fields: fields}, nil
}
