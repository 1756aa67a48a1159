// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleSchema = `
// sample schema
---types---
boolFalse#bc799737 = Bool;
boolTrue#997275b5 = Bool;
user#2e13f4c3 id:long first_name:string flags:# last_name:flags.1?string = User;
vector#1cb5c415 {t:Type} # [ t ] = Vector t;

---functions---
ping#7abe77ec ping_id:long = Pong;
this is not a combinator
messages.getHistory#4423e6c5 peer:InputPeer offset_id:int limit:int = messages.Messages;
`

func TestParseSplitsSections(t *testing.T) {
	schema, errs := Parse(sampleSchema)
	require.Empty(t, errs, "the non-combinator line has no '=' or ';' and is skipped, not reported")

	require.Len(t, schema.Constructors, 4)
	require.Len(t, schema.Methods, 2)
}

func TestParseExplicitID(t *testing.T) {
	schema, _ := Parse(sampleSchema)
	user := schema.ConstructorByName("user")
	require.NotNil(t, user)
	require.True(t, user.HasID)
	require.Equal(t, int32(0x2e13f4c3), user.ID)
}

func TestParseFlagField(t *testing.T) {
	schema, _ := Parse(sampleSchema)
	user := schema.ConstructorByName("user")
	require.NotNil(t, user)

	var lastName *Param
	for i := range user.Params {
		if user.Params[i].Name == "last_name" {
			lastName = &user.Params[i]
		}
	}
	require.NotNil(t, lastName)
	require.Equal(t, TypeRef("flags.1?string"), lastName.Type)
}

func TestParseVectorGenericSkipsSchemaNoise(t *testing.T) {
	schema, _ := Parse(sampleSchema)
	vector := schema.ConstructorByName("vector")
	require.NotNil(t, vector)
	require.Len(t, vector.Params, 1)
	require.True(t, vector.Params[0].Generic)
}

func TestParseMalformedLineRecorded(t *testing.T) {
	_, errs := Parse("broken#abc123 weird_token = ;\n")
	require.NotEmpty(t, errs)
}

func TestParseEmptyHexMeansAbsentNotZero(t *testing.T) {
	schema, errs := Parse("noId# a:int = NoId;\n")
	require.Empty(t, errs)
	require.Len(t, schema.Constructors, 1)
	// absent id triggers canonical computation, never a literal zero.
	require.NotEqual(t, int32(0), schema.Constructors[0].ID)
}

func TestParseStrictFailsOnFirstError(t *testing.T) {
	_, err := ParseStrict("not a combinator at all\n")
	require.NoError(t, err) // silently ignored, not a combinator line at all (no '=' or ';')

	_, err = ParseStrict("badline noTypeToken = Foo;\n")
	require.Error(t, err)
}
