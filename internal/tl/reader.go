// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader deserializes TL objects from a byte buffer against a Registry.
type Reader struct {
	buf      *bytes.Reader
	registry *Registry
}

// Len returns the number of unread bytes remaining in the buffer, letting a
// caller that handed the reader a slice with trailing data (e.g. padding
// after a decrypted DH answer) figure out how much was actually consumed.
func (r *Reader) Len() int {
	return r.buf.Len()
}

func (r *Reader) ReadInt32() (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.buf, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.buf, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func (r *Reader) ReadInt128() (Int128, error) {
	var b Int128
	_, err := io.ReadFull(r.buf, b[:])
	return b, err
}

func (r *Reader) ReadInt256() (Int256, error) {
	var b Int256
	_, err := io.ReadFull(r.buf, b[:])
	return b, err
}

func (r *Reader) ReadDouble() (float64, error) {
	v, err := r.ReadInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

// ReadBytes reads a length-prefixed byte string plus its zero padding to a
// multiple of 4, mirroring Writer.WriteBytes's two length encodings.
func (r *Reader) ReadBytes() ([]byte, error) {
	first, err := r.buf.ReadByte()
	if err != nil {
		return nil, err
	}
	var n, prefixLen int
	if first == 254 {
		var lb [3]byte
		if _, err := io.ReadFull(r.buf, lb[:]); err != nil {
			return nil, err
		}
		n = int(lb[0]) | int(lb[1])<<8 | int(lb[2])<<16
		prefixLen = 4
	} else {
		n = int(first)
		prefixLen = 1
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r.buf, data); err != nil {
		return nil, err
	}
	pad := (4 - (prefixLen+n)%4) % 4
	if pad > 0 {
		if _, err := r.buf.Seek(int64(pad), io.SeekCurrent); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// peekConstructorID reads the next 4 bytes as an id and rewinds.
func (r *Reader) peekConstructorID() (int32, error) {
	id, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if _, err := r.buf.Seek(-4, io.SeekCurrent); err != nil {
		return 0, err
	}
	return id, nil
}

// DecodeObject reads a boxed constructor: its id, then its fields in the
// order the registry declares them. An id absent from the registry yields
// an *UnknownObject rather than an error -- the caller decides whether that
// is fatal (internal/sender fails the one waiting call with an
// mterr.DecodeError).
func (r *Reader) DecodeObject() (interface{}, error) {
	return r.decodeObjectExpecting("")
}

// decodeObjectExpecting is DecodeObject with the caller's declared TL type
// name threaded through, so an *UnknownObject built along the way can record
// what was expected instead of leaving ExpectedType blank.
func (r *Reader) decodeObjectExpecting(expected TypeRef) (interface{}, error) {
	id, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("tl: read constructor id: %w", err)
	}

	switch id {
	case ConstructorGzipPacked:
		return r.decodeGzipObjectBody()
	case ConstructorMsgContainer:
		// A bare container should only ever appear via decodeTopLevel; if it
		// shows up nested as a field value something upstream is confused.
		return nil, fmt.Errorf("tl: unexpected msg_container as nested object")
	}

	c, ok := r.registry.ByID(id)
	if !ok {
		// Every Reader in this package is built over an already-length-bounded
		// slice (a decrypted message body, an rpc_result payload, a
		// msg_container item body), so whatever remains in buf *is* the rest
		// of this object -- there is no sibling data downstream of it to
		// preserve. Drain it into Raw for the caller's diagnostics.
		rest, _ := io.ReadAll(r.buf)
		raw := make([]byte, 0, 4+len(rest))
		var idBytes [4]byte
		binary.LittleEndian.PutUint32(idBytes[:], uint32(id))
		raw = append(raw, idBytes[:]...)
		raw = append(raw, rest...)
		return &UnknownObject{ConstructorID: id, ExpectedType: string(expected), Raw: raw}, nil
	}

	obj := &Object{ID: id, Name: c.Name, Fields: make(map[string]interface{}, len(c.Params))}
	for _, p := range c.Params {
		if p.Generic {
			continue
		}
		if err := r.decodeParam(obj, p); err != nil {
			return nil, fmt.Errorf("tl: %s.%s: %w", c.Name, p.Name, err)
		}
	}
	return obj, nil
}

func (r *Reader) decodeGzipObjectBody() (interface{}, error) {
	packed, err := r.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("tl: gzip_packed body: %w", err)
	}
	inner, err := gunzip(packed)
	if err != nil {
		return nil, err
	}
	innerR := &Reader{buf: bytes.NewReader(inner), registry: r.registry}
	return innerR.DecodeObject()
}

func (r *Reader) decodeParam(obj *Object, p Param) error {
	if isFlagsWord(p.Type) {
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		obj.Fields[p.Name] = v
		return nil
	}

	if flagsName, bit, inner, ok := flagField(p.Type); ok {
		flagsVal, present := obj.Get(flagsName)
		if !present {
			return fmt.Errorf("flags word %q not yet decoded", flagsName)
		}
		bits, ok := flagsVal.(int32)
		if !ok {
			return fmt.Errorf("flags word %q has non-int32 value %T", flagsName, flagsVal)
		}
		if bits&(1<<bit) == 0 {
			return nil // absent: leave the key out of Fields entirely
		}
		if isBareTrue(inner) {
			obj.Fields[p.Name] = true
			return nil
		}
		v, err := r.decodeValue(inner)
		if err != nil {
			return err
		}
		obj.Fields[p.Name] = v
		return nil
	}

	v, err := r.decodeValue(p.Type)
	if err != nil {
		return err
	}
	obj.Fields[p.Name] = v
	return nil
}

func (r *Reader) decodeValue(t TypeRef) (interface{}, error) {
	if elemType, ok := vectorElem(t); ok {
		return r.decodeBoxedVector(elemType)
	}

	switch t {
	case "int":
		return r.ReadInt32()
	case "long":
		return r.ReadInt64()
	case "int128":
		return r.ReadInt128()
	case "int256":
		return r.ReadInt256()
	case "double":
		return r.ReadDouble()
	case "string":
		return r.ReadString()
	case "bytes":
		return r.ReadBytes()
	case "Bool", "bool":
		id, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		switch uint32(id) {
		case 0x997275B5:
			return true, nil
		case 0xBC799737:
			return false, nil
		default:
			return nil, fmt.Errorf("unexpected Bool constructor 0x%08x", uint32(id))
		}
	}

	// Any other type name is a nested boxed object.
	return r.decodeObjectExpecting(t)
}

// decodeBoxedVector reads a Vector<T> field: the 0x1CB5C415 constructor id,
// a count, then count elements of elemType.
func (r *Reader) decodeBoxedVector(elemType TypeRef) ([]interface{}, error) {
	id, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if id != ConstructorVector {
		return nil, fmt.Errorf("expected vector constructor 0x%08x, got 0x%08x", uint32(ConstructorVector), uint32(id))
	}
	return r.decodeVectorBody(elemType)
}

// decodeBareVector reads a Vector<T> with no leading constructor id, used
// only for an RPC method's top-level result when the schema declares it
// directly as Vector<X>.
func (r *Reader) decodeBareVector(elemType TypeRef) ([]interface{}, error) {
	return r.decodeVectorBody(elemType)
}

func (r *Reader) decodeVectorBody(elemType TypeRef) ([]interface{}, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative vector count %d", count)
	}
	out := make([]interface{}, 0, count)
	for i := int32(0); i < count; i++ {
		v, err := r.decodeValue(elemType)
		if err != nil {
			return nil, fmt.Errorf("vector element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
