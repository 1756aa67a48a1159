// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Writer serializes TL objects into a byte buffer against a Registry.
type Writer struct {
	buf      *bytes.Buffer
	registry *Registry
}

// Bytes returns the buffer accumulated so far.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteInt32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

func (w *Writer) WriteInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

func (w *Writer) WriteInt128(v [16]byte) { w.buf.Write(v[:]) }
func (w *Writer) WriteInt256(v [32]byte) { w.buf.Write(v[:]) }

func (w *Writer) WriteDouble(v float64) {
	w.WriteInt64(int64(math.Float64bits(v)))
}

// WriteBytes writes a length-prefixed byte string, padded with zeros so the
// total (prefix + data + padding) is a multiple of 4. Lengths under 254 use
// a single length byte; 254 and above use a 3-byte little-endian length
// preceded by the sentinel byte 254.
func (w *Writer) WriteBytes(data []byte) {
	n := len(data)
	if n < 254 {
		w.buf.WriteByte(byte(n))
		w.buf.Write(data)
		pad := (4 - (1+n)%4) % 4
		writeZeroPad(w.buf, pad)
		return
	}
	w.buf.WriteByte(254)
	w.buf.WriteByte(byte(n))
	w.buf.WriteByte(byte(n >> 8))
	w.buf.WriteByte(byte(n >> 16))
	w.buf.Write(data)
	pad := (4 - n%4) % 4
	writeZeroPad(w.buf, pad)
}

func (w *Writer) WriteString(s string) { w.WriteBytes([]byte(s)) }

func writeZeroPad(buf *bytes.Buffer, n int) {
	var zeros [4]byte
	buf.Write(zeros[:n])
}

// WriteVector writes a boxed Vector<T>: constructor id 0x1CB5C415, the
// element count, then each element encoded per elemType.
func (w *Writer) WriteVector(elems []interface{}, elemType TypeRef) error {
	w.WriteInt32(ConstructorVector)
	w.WriteInt32(int32(len(elems)))
	for i, e := range elems {
		if err := w.writeValue(e, elemType); err != nil {
			return fmt.Errorf("tl: vector element %d: %w", i, err)
		}
	}
	return nil
}

// WriteObject writes obj's constructor id followed by its fields, in the
// order the registry's combinator for obj.ID declares them. Optional fields
// gated by a flags.N?X type are written only when present in obj.Fields;
// their absence must agree with the flags word's bits (the caller is
// responsible for keeping those consistent, same as every MTProto client).
func (w *Writer) WriteObject(obj *Object) error {
	if obj == nil {
		return fmt.Errorf("tl: nil object")
	}
	c, ok := w.registry.ByID(obj.ID)
	if !ok {
		return fmt.Errorf("tl: WriteObject: unknown constructor id 0x%08x", uint32(obj.ID))
	}
	w.WriteInt32(obj.ID)
	for _, p := range c.Params {
		if p.Generic {
			continue
		}
		if err := w.writeParam(obj, p); err != nil {
			return fmt.Errorf("tl: %s.%s: %w", c.Name, p.Name, err)
		}
	}
	return nil
}

func (w *Writer) writeParam(obj *Object, p Param) error {
	if isFlagsWord(p.Type) {
		v, ok := obj.Get(p.Name)
		if !ok {
			return fmt.Errorf("flags word missing")
		}
		i32, ok := v.(int32)
		if !ok {
			return fmt.Errorf("flags word must be int32, got %T", v)
		}
		w.WriteInt32(i32)
		return nil
	}

	if _, bit, inner, ok := flagField(p.Type); ok {
		v, present := obj.Get(p.Name)
		if !present {
			return nil
		}
		if isBareTrue(inner) {
			// `true` flag fields carry no data; presence alone is the value.
			_ = bit
			return nil
		}
		return w.writeValue(v, inner)
	}

	v, present := obj.Get(p.Name)
	if !present {
		return fmt.Errorf("required field missing")
	}
	return w.writeValue(v, p.Type)
}

func (w *Writer) writeValue(v interface{}, t TypeRef) error {
	if elemType, ok := vectorElem(t); ok {
		elems, ok := v.([]interface{})
		if !ok {
			return fmt.Errorf("expected []interface{} for %s, got %T", t, v)
		}
		return w.WriteVector(elems, elemType)
	}

	switch t {
	case "int":
		i, ok := v.(int32)
		if !ok {
			return fmt.Errorf("expected int32 for int, got %T", v)
		}
		w.WriteInt32(i)
		return nil
	case "long":
		i, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64 for long, got %T", v)
		}
		w.WriteInt64(i)
		return nil
	case "int128":
		b, ok := v.(Int128)
		if !ok {
			return fmt.Errorf("expected Int128, got %T", v)
		}
		w.WriteInt128(b)
		return nil
	case "int256":
		b, ok := v.(Int256)
		if !ok {
			return fmt.Errorf("expected Int256, got %T", v)
		}
		w.WriteInt256(b)
		return nil
	case "double":
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected float64 for double, got %T", v)
		}
		w.WriteDouble(f)
		return nil
	case "string":
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		w.WriteString(s)
		return nil
	case "bytes":
		b, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("expected []byte for bytes, got %T", v)
		}
		w.WriteBytes(b)
		return nil
	case "Bool", "bool":
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		if b {
			w.WriteInt32(int32(uint32(0x997275B5))) // boolTrue
		} else {
			w.WriteInt32(int32(uint32(0xBC799737))) // boolFalse
		}
		return nil
	}

	// Anything else is a nested bare or boxed object.
	switch obj := v.(type) {
	case *Object:
		return w.WriteObject(obj)
	case *UnknownObject:
		w.buf.Write(obj.Raw)
		return nil
	default:
		return fmt.Errorf("no encoding known for TL type %q (go type %T)", t, v)
	}
}
