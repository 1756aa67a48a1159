// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tl

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Codec binds a Registry to the Reader/Writer constructors so callers
// (internal/sender, internal/updates) don't have to thread the registry
// through every call.
type Codec struct {
	Registry *Registry
}

func NewCodec(registry *Registry) *Codec {
	return &Codec{Registry: registry}
}

// NewWriter returns a Writer that encodes objects against this codec's
// registry.
func (c *Codec) NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}, registry: c.Registry}
}

// NewReader returns a Reader over data that decodes objects against this
// codec's registry.
func (c *Codec) NewReader(data []byte) *Reader {
	return &Reader{buf: bytes.NewReader(data), registry: c.Registry}
}

// DecodeTopLevel decodes one object from a decrypted message body, unwrapping
// msg_container and gzip_packed transparently and returning the contained
// value(s). A msg_container yields []*ContainerItem; anything else yields the
// single decoded object (itself already gzip/rpc_result unwrapped as needed).
func (c *Codec) DecodeTopLevel(data []byte) (interface{}, error) {
	r := c.NewReader(data)
	return r.decodeTopLevel()
}

// ContainerItem is one message inside a decoded msg_container.
type ContainerItem struct {
	MsgID   int64
	SeqNo   int32
	Payload interface{}
}

func (r *Reader) decodeTopLevel() (interface{}, error) {
	id, err := r.peekConstructorID()
	if err != nil {
		return nil, err
	}
	switch id {
	case ConstructorGzipPacked:
		return r.decodeGzipPacked()
	case ConstructorMsgContainer:
		return r.decodeMsgContainer()
	case ConstructorRPCResult:
		return r.decodeRPCResult()
	default:
		return r.DecodeObject()
	}
}

func (r *Reader) decodeGzipPacked() (interface{}, error) {
	if _, err := r.ReadInt32(); err != nil { // consume the constructor id
		return nil, err
	}
	packed, err := r.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("tl: gzip_packed body: %w", err)
	}
	inner, err := gunzip(packed)
	if err != nil {
		return nil, err
	}
	inR := &Reader{buf: bytes.NewReader(inner), registry: r.registry}
	return inR.decodeTopLevel()
}

// RPCResult is a decoded rpc_result envelope. Raw holds the payload bytes
// (still possibly gzip_packed, still possibly a bare vector) because only
// the caller holding the pending-call table knows the originating request's
// declared result type; see Codec.DecodeResult.
type RPCResult struct {
	ReqMsgID int64
	Raw      []byte
}

func (r *Reader) decodeRPCResult() (*RPCResult, error) {
	if _, err := r.ReadInt32(); err != nil { // consume the constructor id
		return nil, err
	}
	reqMsgID, err := r.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("tl: rpc_result req_msg_id: %w", err)
	}
	rest, err := io.ReadAll(r.buf)
	if err != nil {
		return nil, fmt.Errorf("tl: rpc_result body: %w", err)
	}
	return &RPCResult{ReqMsgID: reqMsgID, Raw: rest}, nil
}

// DecodeResult decodes the raw bytes of an rpc_result's payload against the
// originating request's declared TL result type (e.g. "Pong" or
// "Vector<User>"), transparently unwrapping one level of gzip_packed first.
func (c *Codec) DecodeResult(expected TypeRef, data []byte) (interface{}, error) {
	r := c.NewReader(data)
	return r.decodeResult(expected)
}

func (r *Reader) decodeResult(expected TypeRef) (interface{}, error) {
	id, err := r.peekConstructorID()
	if err != nil {
		return nil, err
	}
	if id == ConstructorGzipPacked {
		if _, err := r.ReadInt32(); err != nil {
			return nil, err
		}
		packed, err := r.ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("tl: result gzip_packed body: %w", err)
		}
		inner, err := gunzip(packed)
		if err != nil {
			return nil, err
		}
		innerR := &Reader{buf: bytes.NewReader(inner), registry: r.registry}
		return innerR.decodeResult(expected)
	}
	if elemType, ok := vectorElem(expected); ok {
		return r.decodeBareVector(elemType)
	}
	return r.decodeObjectExpecting(expected)
}

func gunzip(packed []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, fmt.Errorf("tl: gzip_packed: %w", err)
	}
	defer gr.Close()
	inner, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("tl: gzip_packed: decompress: %w", err)
	}
	return inner, nil
}

func (r *Reader) decodeMsgContainer() ([]*ContainerItem, error) {
	if _, err := r.ReadInt32(); err != nil {
		return nil, err
	}
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	items := make([]*ContainerItem, 0, count)
	for i := int32(0); i < count; i++ {
		msgID, err := r.ReadInt64()
		if err != nil {
			return nil, fmt.Errorf("tl: msg_container[%d] msg_id: %w", i, err)
		}
		seqNo, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("tl: msg_container[%d] seq_no: %w", i, err)
		}
		length, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("tl: msg_container[%d] length: %w", i, err)
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(r.buf, body); err != nil {
			return nil, fmt.Errorf("tl: msg_container[%d] body: %w", i, err)
		}
		bodyR := &Reader{buf: bytes.NewReader(body), registry: r.registry}
		payload, err := bodyR.decodeTopLevel()
		if err != nil {
			return nil, fmt.Errorf("tl: msg_container[%d] payload: %w", i, err)
		}
		items = append(items, &ContainerItem{MsgID: msgID, SeqNo: seqNo, Payload: payload})
	}
	return items, nil
}

// --- shared type-reference parsing -----------------------------------------

// flagField parses a "flags.N?X" type expression into the flags field name,
// bit index, and inner type. ok is false for any other type expression.
func flagField(t TypeRef) (flagsName string, bit uint, inner TypeRef, ok bool) {
	s := string(t)
	dot := strings.Index(s, ".")
	q := strings.Index(s, "?")
	if dot < 0 || q < 0 || q < dot {
		return "", 0, "", false
	}
	name := s[:dot]
	bitStr := s[dot+1 : q]
	n, err := strconv.Atoi(bitStr)
	if err != nil || n < 0 {
		return "", 0, "", false
	}
	return name, uint(n), TypeRef(s[q+1:]), true
}

// vectorElem returns the element type of a "Vector<X>" expression and true,
// or ("", false) if t is not a vector type.
func vectorElem(t TypeRef) (TypeRef, bool) {
	s := string(t)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "vector<") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	return TypeRef(s[len("vector<") : len(s)-1]), true
}

func isBareTrue(t TypeRef) bool {
	return t == "true" || t == "True"
}

func isFlagsWord(t TypeRef) bool {
	return t == "#"
}
