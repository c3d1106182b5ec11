package encoding

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures"
)

// Packer serializes values to the given stream. It supports the builtin
// golang types that map onto the wire types, plus []interface{},
// map[string]interface{} and anything implementing structures.Structure.
//
// Byte arrays are only legal against servers new enough to understand
// them; SetBytesSupport flips the gate once the server version is known.
type Packer struct {
	w              io.Writer
	bytesSupported bool
}

// NewPacker Creates a new Packer around the given writer
func NewPacker(w io.Writer) *Packer {
	return &Packer{w: w, bytesSupported: true}
}

// SetBytesSupport toggles whether []byte values may be packed
func (p *Packer) SetBytesSupport(supported bool) {
	p.bytesSupported = supported
}

// PackStructure packs a structure: signature, field count, then each field
func (p *Packer) PackStructure(val structures.Structure) error {
	fields := val.AllFields()
	length := len(fields)
	switch {
	case length <= 15:
		if err := p.writeBytes(byte(TinyStructMarker+length), byte(val.Signature())); err != nil {
			return err
		}
	case length <= math.MaxUint8:
		if err := p.writeBytes(Struct8Marker, byte(length), byte(val.Signature())); err != nil {
			return err
		}
	case length <= math.MaxUint16:
		if err := p.writeBytes(Struct16Marker); err != nil {
			return err
		}
		if err := p.writeUint16(uint16(length)); err != nil {
			return err
		}
		if err := p.writeBytes(byte(val.Signature())); err != nil {
			return err
		}
	default:
		return errors.Serialization("structure has too many fields: %d", length)
	}
	for _, field := range fields {
		if err := p.Pack(field); err != nil {
			return err
		}
	}
	return nil
}

// Pack packs a single value to the stream
func (p *Packer) Pack(iVal interface{}) error {
	switch val := iVal.(type) {
	case nil:
		return p.writeBytes(NilMarker)
	case bool:
		if val {
			return p.writeBytes(TrueMarker)
		}
		return p.writeBytes(FalseMarker)
	case int:
		return p.packInt(int64(val))
	case int8:
		return p.packInt(int64(val))
	case int16:
		return p.packInt(int64(val))
	case int32:
		return p.packInt(int64(val))
	case int64:
		return p.packInt(val)
	case uint:
		return p.packInt(int64(val))
	case uint8:
		return p.packInt(int64(val))
	case uint16:
		return p.packInt(int64(val))
	case uint32:
		return p.packInt(int64(val))
	case uint64:
		if val > math.MaxInt64 {
			return errors.Serialization("integer too big: %d", val)
		}
		return p.packInt(int64(val))
	case float32:
		return p.packFloat(float64(val))
	case float64:
		return p.packFloat(val)
	case string:
		return p.packString(val)
	case []byte:
		return p.packBytes(val)
	case []interface{}:
		return p.packSlice(val)
	case map[string]interface{}:
		return p.packMap(val)
	case structures.Structure:
		return p.PackStructure(val)
	default:
		return errors.Serialization("unrecognized type to pack: %T %+v", val, val)
	}
}

func (p *Packer) writeBytes(bs ...byte) error {
	if _, err := p.w.Write(bs); err != nil {
		return errors.WrapTransport(err, "writing marker bytes")
	}
	return nil
}

func (p *Packer) writeUint16(val uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], val)
	return p.writeBytes(b[:]...)
}

func (p *Packer) writeUint32(val uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], val)
	return p.writeBytes(b[:]...)
}

// packInt writes the value in the smallest width that can carry it
func (p *Packer) packInt(val int64) error {
	switch {
	case val >= -16 && val <= 127:
		return p.writeBytes(byte(int8(val)))
	case val >= math.MinInt8 && val <= math.MaxInt8:
		return p.writeBytes(Int8Marker, byte(int8(val)))
	case val >= math.MinInt16 && val <= math.MaxInt16:
		if err := p.writeBytes(Int16Marker); err != nil {
			return err
		}
		return p.writeUint16(uint16(int16(val)))
	case val >= math.MinInt32 && val <= math.MaxInt32:
		if err := p.writeBytes(Int32Marker); err != nil {
			return err
		}
		return p.writeUint32(uint32(int32(val)))
	default:
		if err := p.writeBytes(Int64Marker); err != nil {
			return err
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(val))
		return p.writeBytes(b[:]...)
	}
}

func (p *Packer) packFloat(val float64) error {
	if err := p.writeBytes(FloatMarker); err != nil {
		return err
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(val))
	return p.writeBytes(b[:]...)
}

func (p *Packer) packLength(length int, tinyMarker, marker8, marker16, marker32 byte) error {
	switch {
	case length <= 15 && tinyMarker != 0:
		return p.writeBytes(tinyMarker + byte(length))
	case length <= math.MaxUint8:
		return p.writeBytes(marker8, byte(length))
	case length <= math.MaxUint16:
		if err := p.writeBytes(marker16); err != nil {
			return err
		}
		return p.writeUint16(uint16(length))
	case int64(length) <= math.MaxUint32:
		if err := p.writeBytes(marker32); err != nil {
			return err
		}
		return p.writeUint32(uint32(length))
	default:
		return errors.Serialization("value too long to pack: %d items", length)
	}
}

func (p *Packer) packString(val string) error {
	if err := p.packLength(len(val), TinyStringMarker, String8Marker, String16Marker, String32Marker); err != nil {
		return err
	}
	return p.writeBytes([]byte(val)...)
}

// packBytes refuses before touching the stream when the server cannot
// understand byte arrays.
func (p *Packer) packBytes(val []byte) error {
	if !p.bytesSupported {
		return errors.Serialization("byte arrays require server version 3.2.0 or newer")
	}
	if err := p.packLength(len(val), 0, Bytes8Marker, Bytes16Marker, Bytes32Marker); err != nil {
		return err
	}
	return p.writeBytes(val...)
}

func (p *Packer) packSlice(val []interface{}) error {
	if err := p.packLength(len(val), TinySliceMarker, Slice8Marker, Slice16Marker, Slice32Marker); err != nil {
		return err
	}
	for _, item := range val {
		if err := p.Pack(item); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packer) packMap(val map[string]interface{}) error {
	if err := p.packLength(len(val), TinyMapMarker, Map8Marker, Map16Marker, Map32Marker); err != nil {
		return err
	}
	for k, v := range val {
		if err := p.packString(k); err != nil {
			return err
		}
		if err := p.Pack(v); err != nil {
			return err
		}
	}
	return nil
}
