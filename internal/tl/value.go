// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tl

// Object is an instance of a TL constructor: its numeric id, its name (for
// readability; not written to the wire), and a name -> value mapping for its
// fields. A field absent from Fields because its flag bit was unset must
// stay absent on decode -- never a zero value, never false for a `true`
// field -- so round-tripping preserves the gap (see codec_test.go).
//
// A field value is one of: int32, int64, Int128, Int256, string, []byte,
// float64, bool (Bool fields and `true` flag fields), []interface{} (a
// Vector), *Object, or *UnknownObject.
type Object struct {
	ID     int32
	Name   string
	Fields map[string]interface{}
}

// Get returns a field value and whether it was present.
func (o *Object) Get(name string) (interface{}, bool) {
	if o == nil || o.Fields == nil {
		return nil, false
	}
	v, ok := o.Fields[name]
	return v, ok
}

// UnknownObject is a placeholder for a constructor id absent from the
// registry. ExpectedType records the declared type at the point of decode;
// Raw holds the bytes of the object as consumed (constructor id included),
// when an outer length let the decoder know how far to skip.
type UnknownObject struct {
	ExpectedType  string
	ConstructorID int32
	Raw           []byte
}

// Int128 and Int256 are the fixed-width byte-array field types the wire
// format calls int128/int256 (nonces, message keys, etc.)
type Int128 [16]byte
type Int256 [32]byte

// Well-known constructor ids the codec unwraps automatically on read.
// ConstructorRPCResult is 0xF35C6D01 reinterpreted as signed int32.
const (
	ConstructorMsgContainer int32 = 0x73F1F8DC
	ConstructorRPCResult    int32 = -0x0CA392FF
	ConstructorGzipPacked   int32 = 0x3072CFA1
	ConstructorVector       int32 = 0x1CB5C415
)

// Request is satisfied by generated (or hand-built) RPC method values: a
// request knows its own wire encoding and the TL type name of the object its
// reply decodes into ("Vector<X>" included), so the sender's pending-call
// table can tell the codec whether to expect a bare vector.
type Request interface {
	// AsObject renders the request as the Object that gets encoded onto the
	// wire (constructor id = the method's id, fields = the call's arguments).
	AsObject() *Object
	// ResultType is the method's declared TL result type, e.g. "Pong" or
	// "Vector<User>".
	ResultType() TypeRef
}
