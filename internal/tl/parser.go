// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tl

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

const (
	sectionTypes     = "types"
	sectionFunctions = "functions"
)

// ParseError is one malformed combinator line; parsing continues past it so
// a schema with a handful of unsupported lines still yields a usable AST.
type ParseError struct {
	Line int
	Text string
	Err  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tl: parse error at line %d: %s: %q", e.Line, e.Err, e.Text)
}

// Parse scans a TL schema text and returns the AST plus any per-line errors.
// Non-combinator lines (section markers, blank lines, comment-only lines)
// are silently ignored, not reported as errors.
func Parse(text string) (*Schema, []*ParseError) {
	schema := &Schema{}
	var errs []*ParseError

	section := sectionTypes
	for i, rawLine := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(stripInlineComment(rawLine))
		if line == "" {
			continue
		}

		if sec, ok := matchSection(line); ok {
			section = sec
			continue
		}

		if !strings.HasSuffix(line, ";") || !strings.Contains(line, "=") {
			continue
		}

		combinator, err := parseCombinatorLine(line, section)
		if err != nil {
			errs = append(errs, &ParseError{Line: lineNo, Text: line, Err: err.Error()})
			continue
		}

		if combinator.Kind == KindMethod {
			schema.Methods = append(schema.Methods, combinator)
		} else {
			schema.Constructors = append(schema.Constructors, combinator)
		}
	}

	return schema, errs
}

// ParseStrict parses text and fails on the first malformed combinator.
func ParseStrict(text string) (*Schema, error) {
	schema, errs := Parse(text)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return schema, nil
}

func stripInlineComment(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func matchSection(line string) (string, bool) {
	switch line {
	case "---types---":
		return sectionTypes, true
	case "---functions---":
		return sectionFunctions, true
	}
	return "", false
}

func parseCombinatorLine(line, section string) (*Combinator, error) {
	left, right, ok := strings.Cut(line, "=")
	if !ok {
		return nil, fmt.Errorf("missing '='")
	}
	right = strings.TrimSpace(right)
	if !strings.HasSuffix(right, ";") {
		return nil, fmt.Errorf("missing ';'")
	}
	resultExpr := strings.TrimSpace(strings.TrimSuffix(right, ";"))
	if resultExpr == "" {
		return nil, fmt.Errorf("missing result type")
	}

	fields := strings.Fields(strings.TrimSpace(left))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty combinator line")
	}

	nameToken := fields[0]
	name, id, hasID := parseConstructorID(nameToken)
	if name == "" {
		return nil, fmt.Errorf("empty combinator name")
	}

	var params []Param
	inBrackets := false
	for _, tok := range fields[1:] {
		if inBrackets {
			if strings.Contains(tok, "]") {
				inBrackets = false
			}
			continue
		}
		if strings.Contains(tok, "[") {
			inBrackets = true
			continue
		}
		if tok == "#" || tok == "?" {
			continue
		}
		p, err := parseParam(tok)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	kind := KindConstructor
	if section == sectionFunctions {
		kind = KindMethod
	}

	c := &Combinator{
		Kind:   kind,
		Name:   name,
		ID:     id,
		HasID:  hasID,
		Params: params,
		Result: TypeRef(resultExpr),
	}
	if !hasID {
		c.ID = canonicalConstructorID(c)
	}
	return c, nil
}

func parseParam(token string) (Param, error) {
	generic := false
	if strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
		token = token[1 : len(token)-1]
		generic = true
	}
	name, typeExpr, ok := strings.Cut(token, ":")
	if !ok {
		return Param{}, fmt.Errorf("invalid param token %q", token)
	}
	return Param{Name: name, Type: TypeRef(typeExpr), Generic: generic}, nil
}

// parseConstructorID splits "name#hex" into name and a signed int32 id.
// An empty hex body after '#' means the id is absent, not zero.
func parseConstructorID(token string) (name string, id int32, hasID bool) {
	name, hexPart, found := strings.Cut(token, "#")
	if !found {
		return token, 0, false
	}
	hexPart = strings.TrimSpace(hexPart)
	if hexPart == "" {
		return name, 0, false
	}
	v, err := strconv.ParseUint(hexPart, 16, 64)
	if err != nil {
		return name, 0, false
	}
	// wrap values >= 2^31 by subtracting 2^32, i.e. reinterpret as signed int32
	return name, int32(uint32(v)), true
}

// canonicalConstructorID computes the CRC32 of the combinator's canonical
// declaration, per TL's convention for ids not given literally in the
// schema: "name field:type ... = Result;" with generic params rendered as
// "{name:type}" and whitespace collapsed to single spaces.
func canonicalConstructorID(c *Combinator) int32 {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, p := range c.Params {
		b.WriteByte(' ')
		if p.Generic {
			b.WriteByte('{')
		}
		b.WriteString(p.Name)
		b.WriteByte(':')
		b.WriteString(string(p.Type))
		if p.Generic {
			b.WriteByte('}')
		}
	}
	b.WriteString(" = ")
	b.WriteString(string(c.Result))
	b.WriteByte(';')

	sum := crc32.ChecksumIEEE([]byte(b.String()))
	return int32(sum)
}
