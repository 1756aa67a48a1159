// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package tl implements the Type Language: a schema parser (this file and
// parser.go) and a binary codec (codec.go, reader.go, writer.go,
// registry.go) keyed by the parsed schema.
package tl

// TypeRef is a raw TL type expression, stored verbatim: "int", "long",
// "Vector<int>", "flags.2?string", and so on. The codec interprets it at
// encode/decode time rather than this package resolving it up front.
type TypeRef string

// Param is one field of a constructor or method.
type Param struct {
	Name string
	Type TypeRef
	// Generic marks a brace-delimited param ({X:Type}); generic params
	// declare a type variable and contribute nothing to the wire layout.
	Generic bool
}

// Kind distinguishes a concrete type constructor from an RPC method.
type Kind int

const (
	KindConstructor Kind = iota
	KindMethod
)

// Combinator is a single parsed schema line: a constructor or a method.
type Combinator struct {
	Kind Kind
	Name string
	// ID is the 32-bit constructor id. HasID is false when the schema line
	// had no literal '#hex' tag (id absent, not zero).
	ID    int32
	HasID bool
	Params []Param
	Result TypeRef
}

// Schema is a parsed TL schema: its constructors (concrete types) and
// methods (RPC functions), in file order.
type Schema struct {
	Constructors []*Combinator
	Methods      []*Combinator
}

// ConstructorByName finds a constructor by dotted name with a linear scan,
// for lookups that aren't on the hot decode path (Registry indexes by id and
// name for those).
func (s *Schema) ConstructorByName(name string) *Combinator {
	for _, c := range s.Constructors {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *Schema) MethodByName(name string) *Combinator {
	for _, m := range s.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}
