// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tl

// Registry resolves constructor ids to their schema shape at codec time. It
// is the only thing the reader/writer need from a parsed Schema; building
// one once and reusing it avoids a linear scan per field.
type Registry struct {
	byID   map[int32]*Combinator
	byName map[string]*Combinator
}

// NewRegistry indexes every constructor and method in schema by id and by
// dotted name. Methods are included because encoding an outbound request
// writes the method's own id and params exactly like encoding a constructor.
func NewRegistry(schema *Schema) *Registry {
	r := &Registry{
		byID:   make(map[int32]*Combinator, len(schema.Constructors)+len(schema.Methods)),
		byName: make(map[string]*Combinator, len(schema.Constructors)+len(schema.Methods)),
	}
	for _, c := range schema.Constructors {
		r.byID[c.ID] = c
		r.byName[c.Name] = c
	}
	for _, m := range schema.Methods {
		r.byID[m.ID] = m
		r.byName[m.Name] = m
	}
	return r
}

// ByID looks up a combinator by its wire constructor id.
func (r *Registry) ByID(id int32) (*Combinator, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// ByName looks up a combinator by its dotted schema name.
func (r *Registry) ByName(name string) (*Combinator, bool) {
	c, ok := r.byName[name]
	return c, ok
}
