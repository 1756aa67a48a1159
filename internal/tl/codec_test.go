// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tl

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"
)

const codecTestSchema = `
---types---
user#5a3f10aa id:long flags:# first_name:string last_name:flags.0?string verified:flags.1?true = User;
simple#a1b2c3d4 value:int = Simple;
intList#3a2f1044 ids:Vector<int> = IntList;

---functions---
ping#7abe77ec ping_id:long = Pong;
getInts#6f1a2233 count:int = Vector<int>;
`

func testCodec(t *testing.T) *Codec {
	t.Helper()
	schema, errs := Parse(codecTestSchema)
	require.Empty(t, errs)
	return NewCodec(NewRegistry(schema))
}

func TestBytesRoundTripAcrossLengthBoundary(t *testing.T) {
	for _, n := range []int{0, 1, 253, 254, 255, 1000} {
		data := bytes.Repeat([]byte{0xAB}, n)
		w := &Writer{buf: &bytes.Buffer{}}
		w.WriteBytes(data)
		require.Zero(t, len(w.Bytes())%4, "length %d: total must be 4-aligned", n)

		r := &Reader{buf: bytes.NewReader(w.Bytes())}
		got, err := r.ReadBytes()
		require.NoError(t, err)
		require.Equal(t, data, got)
		require.Equal(t, 0, r.buf.Len(), "no trailing bytes left unconsumed")
	}
}

func TestObjectRoundTripAbsentFlagFieldStaysAbsent(t *testing.T) {
	codec := testCodec(t)
	user, ok := codec.Registry.ByName("user")
	require.True(t, ok)

	obj := &Object{
		ID:   user.ID,
		Name: "user",
		Fields: map[string]interface{}{
			"id":         int64(42),
			"flags":      int32(0),
			"first_name": "Ada",
		},
	}

	w := codec.NewWriter()
	require.NoError(t, w.WriteObject(obj))

	r := codec.NewReader(w.Bytes())
	decoded, err := r.DecodeObject()
	require.NoError(t, err)

	got, ok := decoded.(*Object)
	require.True(t, ok)
	_, present := got.Get("last_name")
	require.False(t, present, "flags bit 0 unset: last_name must be absent, not a zero value")
	_, present = got.Get("verified")
	require.False(t, present)
	require.Equal(t, "Ada", got.Fields["first_name"])
}

func TestObjectRoundTripPresentFlagFields(t *testing.T) {
	codec := testCodec(t)
	user, ok := codec.Registry.ByName("user")
	require.True(t, ok)

	obj := &Object{
		ID:   user.ID,
		Name: "user",
		Fields: map[string]interface{}{
			"id":         int64(7),
			"flags":      int32(1<<0 | 1<<1),
			"first_name": "Grace",
			"last_name":  "Hopper",
			"verified":   true,
		},
	}

	w := codec.NewWriter()
	require.NoError(t, w.WriteObject(obj))

	r := codec.NewReader(w.Bytes())
	decoded, err := r.DecodeObject()
	require.NoError(t, err)
	got := decoded.(*Object)
	require.Equal(t, "Hopper", got.Fields["last_name"])
	require.Equal(t, true, got.Fields["verified"])
}

func TestVectorFieldRoundTrip(t *testing.T) {
	codec := testCodec(t)
	intList, ok := codec.Registry.ByName("intList")
	require.True(t, ok)

	obj := &Object{
		ID:     intList.ID,
		Name:   "intList",
		Fields: map[string]interface{}{"ids": []interface{}{int32(1), int32(2), int32(3)}},
	}
	w := codec.NewWriter()
	require.NoError(t, w.WriteObject(obj))

	r := codec.NewReader(w.Bytes())
	decoded, err := r.DecodeObject()
	require.NoError(t, err)
	got := decoded.(*Object)
	require.Equal(t, []interface{}{int32(1), int32(2), int32(3)}, got.Fields["ids"])
}

func TestUnknownConstructorDecodesAsPlaceholder(t *testing.T) {
	codec := testCodec(t)
	w := codec.NewWriter()
	w.WriteInt32(0x11223344) // not in codecTestSchema
	w.WriteInt32(99)

	r := codec.NewReader(w.Bytes())
	decoded, err := r.DecodeObject()
	require.NoError(t, err)
	unk, ok := decoded.(*UnknownObject)
	require.True(t, ok)
	require.Equal(t, int32(0x11223344), unk.ConstructorID)
}

func TestMsgContainerUnwraps(t *testing.T) {
	codec := testCodec(t)
	simple, ok := codec.Registry.ByName("simple")
	require.True(t, ok)

	msgW := codec.NewWriter()
	require.NoError(t, msgW.WriteObject(&Object{ID: simple.ID, Name: "simple", Fields: map[string]interface{}{"value": int32(5)}}))
	msgBody := msgW.Bytes()

	containerW := &bytes.Buffer{}
	write32 := func(v int32) { w := &Writer{buf: containerW}; w.WriteInt32(v) }
	write64 := func(v int64) { w := &Writer{buf: containerW}; w.WriteInt64(v) }

	write32(ConstructorMsgContainer)
	write32(1) // count
	write64(123456789)
	write32(1) // seq_no
	write32(int32(len(msgBody)))
	containerW.Write(msgBody)

	decoded, err := codec.DecodeTopLevel(containerW.Bytes())
	require.NoError(t, err)
	items, ok := decoded.([]*ContainerItem)
	require.True(t, ok)
	require.Len(t, items, 1)
	require.Equal(t, int64(123456789), items[0].MsgID)

	inner, ok := items[0].Payload.(*Object)
	require.True(t, ok)
	require.Equal(t, int32(5), inner.Fields["value"])
}

func TestGzipPackedUnwrapsBeforeObjectDecode(t *testing.T) {
	codec := testCodec(t)
	simple, ok := codec.Registry.ByName("simple")
	require.True(t, ok)

	innerW := codec.NewWriter()
	require.NoError(t, innerW.WriteObject(&Object{ID: simple.ID, Name: "simple", Fields: map[string]interface{}{"value": int32(77)}}))

	var gzipped bytes.Buffer
	gw := gzip.NewWriter(&gzipped)
	_, err := gw.Write(innerW.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	outer := &bytes.Buffer{}
	w := &Writer{buf: outer}
	w.WriteInt32(ConstructorGzipPacked)
	w.WriteBytes(gzipped.Bytes())

	decoded, err := codec.DecodeTopLevel(outer.Bytes())
	require.NoError(t, err)
	obj, ok := decoded.(*Object)
	require.True(t, ok)
	require.Equal(t, int32(77), obj.Fields["value"])
}

func TestRPCResultWithBareVectorDeclaredResult(t *testing.T) {
	codec := testCodec(t)

	resultBody := &bytes.Buffer{}
	bw := &Writer{buf: resultBody}
	bw.WriteInt32(3) // vector count, no boxed constructor id: a bare vector
	bw.WriteInt32(10)
	bw.WriteInt32(20)
	bw.WriteInt32(30)

	outer := &bytes.Buffer{}
	w := &Writer{buf: outer}
	w.WriteInt32(ConstructorRPCResult)
	w.WriteInt64(999)
	outer.Write(resultBody.Bytes())

	decoded, err := codec.DecodeTopLevel(outer.Bytes())
	require.NoError(t, err)
	rpcResult, ok := decoded.(*RPCResult)
	require.True(t, ok)
	require.Equal(t, int64(999), rpcResult.ReqMsgID)

	getInts, ok := codec.Registry.ByName("getInts")
	require.True(t, ok)
	resolved, err := codec.DecodeResult(getInts.Result, rpcResult.Raw)
	require.NoError(t, err)
	require.Equal(t, []interface{}{int32(10), int32(20), int32(30)}, resolved)
}
