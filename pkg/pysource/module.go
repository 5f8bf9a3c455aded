// Package pysource reads the structure of Python tool files without executing
// them: class and function definitions, parameter signatures and literal
// return values.
package pysource

import (
	"fmt"
	"sort"
	"strings"
)

// ParamKind distinguishes the parameter groups of a def signature.
type ParamKind int

const (
	ParamRegular ParamKind = iota
	ParamPositionalOnly
	ParamVarArgs
	ParamKeywordOnly
	ParamVarKeywords
)

// Param is one parameter of a def signature.
type Param struct {
	Name       string
	Annotation string // rendered annotation, "" when absent
	Default    string // rendered default expression, "" when absent
	HasDefault bool
	Kind       ParamKind
}

// IsUnionWithNone reports whether the annotation admits None.
func (p Param) IsUnionWithNone() bool {
	return IsUnionWithNone(p.Annotation)
}

// ClassDef is a class statement.
type ClassDef struct {
	Name       string
	Bases      []string
	Decorators []string
	Line       int
	Depth      int
}

// FunctionDef is a def statement. Class is set when the def sits directly in a class body.
type FunctionDef struct {
	Name       string
	Class      string
	Async      bool
	Decorators []string
	Params     []Param
	Returns    string
	Line       int
	Depth      int

	body []logicalLine
}

// IsStaticMethod reports whether the def carries a staticmethod decorator
// (bare or attribute form).
func (f *FunctionDef) IsStaticMethod() bool {
	for _, d := range f.Decorators {
		if d == "staticmethod" || strings.HasSuffix(d, ".staticmethod") {
			return true
		}
	}
	return false
}

// receiverNames are leading parameters that do not belong to a tool's public signature.
var receiverNames = map[string]bool{"self": true, "cls": true, "data": true}

// SignatureParams returns the regular positional-or-keyword parameters,
// skipping self, cls and data.
func (f *FunctionDef) SignatureParams() []Param {
	out := []Param{}
	for _, p := range f.Params {
		if p.Kind != ParamRegular || receiverNames[p.Name] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Module is the parsed structure of a source file.
type Module struct {
	Classes   []*ClassDef
	Functions []*FunctionDef

	top []logicalLine
}

type scope struct {
	indent int
	class  *ClassDef
	fn     *FunctionDef
}

// Parse reads the definitions of a source file.
func Parse(src string) (*Module, error) {
	lines, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	m := &Module{}
	var (
		stack      []scope
		indents    = []int{0}
		decorators []string
	)
	for _, ln := range lines {
		for len(stack) > 0 && stack[len(stack)-1].indent >= ln.Indent {
			stack = stack[:len(stack)-1]
		}
		for len(indents) > 1 && indents[len(indents)-1] > ln.Indent {
			indents = indents[:len(indents)-1]
		}
		if ln.Indent > indents[len(indents)-1] {
			indents = append(indents, ln.Indent)
		}
		depth := len(indents) - 1

		var owner *FunctionDef
		var ownerClass *ClassDef
		if len(stack) > 0 {
			owner = stack[len(stack)-1].fn
			ownerClass = stack[len(stack)-1].class
		}

		toks := ln.Tokens
		switch {
		case isOp(toks[0], "@"):
			decorators = append(decorators, render(toks[1:]))
			continue
		case isName(toks[0], "class"):
			cls, err := parseClass(ln, depth)
			if err != nil {
				return nil, err
			}
			cls.Decorators = decorators
			m.Classes = append(m.Classes, cls)
			stack = append(stack, scope{indent: ln.Indent, class: cls})
		case isName(toks[0], "def") || (isName(toks[0], "async") && len(toks) > 1 && isName(toks[1], "def")):
			fn, inline, err := parseDef(ln, depth)
			if err != nil {
				return nil, err
			}
			fn.Decorators = decorators
			if ownerClass != nil {
				fn.Class = ownerClass.Name
			}
			if len(inline) > 0 {
				fn.body = append(fn.body, logicalLine{Indent: ln.Indent + 1, Line: ln.Line, Tokens: inline})
			}
			m.Functions = append(m.Functions, fn)
			stack = append(stack, scope{indent: ln.Indent, fn: fn})
		default:
			if owner != nil {
				owner.body = append(owner.body, ln)
			} else if ownerClass == nil && ln.Indent == 0 {
				m.top = append(m.top, ln)
			}
		}
		decorators = nil
	}
	return m, nil
}

// Class returns the first class with the given name.
func (m *Module) Class(name string) (*ClassDef, bool) {
	for _, c := range m.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Method returns the def named name directly inside class.
func (m *Module) Method(class, name string) (*FunctionDef, bool) {
	for _, f := range m.Functions {
		if f.Class == class && f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// FindInvoke locates the tool entry point: the first static invoke defined
// directly in a class, searching shallow definitions before deeper ones;
// otherwise the shallowest def named invoke anywhere in the file.
func (m *Module) FindInvoke() (*FunctionDef, bool) {
	var static, candidates []*FunctionDef
	for _, f := range m.Functions {
		if f.Name != "invoke" || f.Async {
			continue
		}
		candidates = append(candidates, f)
		if f.Class != "" && f.IsStaticMethod() {
			static = append(static, f)
		}
	}
	if len(static) > 0 {
		classDepth := make(map[string]int, len(m.Classes))
		for _, c := range m.Classes {
			if _, seen := classDepth[c.Name]; !seen {
				classDepth[c.Name] = c.Depth
			}
		}
		sortByDepth(static, func(f *FunctionDef) int { return classDepth[f.Class] })
		return static[0], true
	}
	if len(candidates) > 0 {
		sortByDepth(candidates, func(f *FunctionDef) int { return f.Depth })
		return candidates[0], true
	}
	return nil, false
}

func sortByDepth(fns []*FunctionDef, depth func(*FunctionDef) int) {
	sort.SliceStable(fns, func(i, j int) bool {
		di, dj := depth(fns[i]), depth(fns[j])
		if di != dj {
			return di < dj
		}
		return fns[i].Line < fns[j].Line
	})
}

func parseClass(ln logicalLine, depth int) (*ClassDef, error) {
	toks := ln.Tokens
	if len(toks) < 2 || toks[1].Kind != TokenName {
		return nil, fmt.Errorf("line %d: malformed class statement", ln.Line)
	}
	cls := &ClassDef{Name: toks[1].Text, Line: ln.Line, Depth: depth}
	if len(toks) > 2 && isOp(toks[2], "(") {
		closing := matchBracket(toks, 2)
		if closing < 0 {
			return nil, fmt.Errorf("line %d: unbalanced class bases", ln.Line)
		}
		for _, part := range splitTokens(toks[3:closing], ",") {
			if len(part) > 0 {
				cls.Bases = append(cls.Bases, render(part))
			}
		}
	}
	return cls, nil
}

// parseDef reads a def header and returns any statement written after its colon.
func parseDef(ln logicalLine, depth int) (*FunctionDef, []Token, error) {
	toks := ln.Tokens
	fn := &FunctionDef{Line: ln.Line, Depth: depth}
	i := 0
	if isName(toks[0], "async") {
		fn.Async = true
		i++
	}
	i++ // def
	if i >= len(toks) || toks[i].Kind != TokenName {
		return nil, nil, fmt.Errorf("line %d: malformed def statement", ln.Line)
	}
	fn.Name = toks[i].Text
	i++
	if i < len(toks) && isOp(toks[i], "[") {
		// PEP 695 type parameters
		if i = matchBracket(toks, i); i < 0 {
			return nil, nil, fmt.Errorf("line %d: unbalanced type parameters", ln.Line)
		}
		i++
	}
	if i >= len(toks) || !isOp(toks[i], "(") {
		return nil, nil, fmt.Errorf("line %d: def %s has no parameter list", ln.Line, fn.Name)
	}
	closing := matchBracket(toks, i)
	if closing < 0 {
		return nil, nil, fmt.Errorf("line %d: unbalanced parameter list", ln.Line)
	}
	params, err := parseParams(toks[i+1 : closing])
	if err != nil {
		return nil, nil, fmt.Errorf("line %d: %w", ln.Line, err)
	}
	fn.Params = params

	rest := toks[closing+1:]
	colon := indexTopLevel(rest, ":")
	if colon < 0 {
		return nil, nil, fmt.Errorf("line %d: def %s is missing ':'", ln.Line, fn.Name)
	}
	if colon > 0 && isOp(rest[0], "->") {
		fn.Returns = render(rest[1:colon])
	}
	return fn, rest[colon+1:], nil
}

func parseParams(toks []Token) ([]Param, error) {
	var (
		params  []Param
		kwOnly  bool
		sawStar bool
	)
	for _, part := range splitTokens(toks, ",") {
		if len(part) == 0 {
			continue
		}
		switch {
		case isOp(part[0], "/") && len(part) == 1:
			for i := range params {
				if params[i].Kind == ParamRegular {
					params[i].Kind = ParamPositionalOnly
				}
			}
			continue
		case isOp(part[0], "*") && len(part) == 1:
			kwOnly, sawStar = true, true
			continue
		}

		kind := ParamRegular
		if kwOnly {
			kind = ParamKeywordOnly
		}
		switch {
		case isOp(part[0], "**"):
			kind = ParamVarKeywords
			part = part[1:]
		case isOp(part[0], "*"):
			if sawStar {
				return nil, fmt.Errorf("duplicate * in parameter list")
			}
			kind, kwOnly, sawStar = ParamVarArgs, true, true
			part = part[1:]
		}
		if len(part) == 0 || part[0].Kind != TokenName {
			return nil, fmt.Errorf("malformed parameter %q", render(part))
		}

		p := Param{Name: part[0].Text, Kind: kind}
		rest := part[1:]
		if eq := indexTopLevel(rest, "="); eq >= 0 {
			p.HasDefault = true
			p.Default = render(rest[eq+1:])
			rest = rest[:eq]
		}
		if len(rest) > 0 {
			if !isOp(rest[0], ":") {
				return nil, fmt.Errorf("malformed parameter %q", render(part))
			}
			p.Annotation = render(rest[1:])
		}
		params = append(params, p)
	}
	return params, nil
}

// matchBracket returns the index of the bracket closing toks[open], or -1.
func matchBracket(toks []Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Kind != TokenOp {
			continue
		}
		switch toks[i].Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// indexTopLevel returns the first index of op outside brackets, or -1.
func indexTopLevel(toks []Token, op string) int {
	depth := 0
	for i, t := range toks {
		if t.Kind != TokenOp {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case op:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTokens splits on op outside brackets. A trailing separator yields no empty tail.
func splitTokens(toks []Token, op string) [][]Token {
	var parts [][]Token
	for {
		i := indexTopLevel(toks, op)
		if i < 0 {
			break
		}
		parts = append(parts, toks[:i])
		toks = toks[i+1:]
	}
	if len(toks) > 0 {
		parts = append(parts, toks)
	}
	return parts
}

func isOp(t Token, text string) bool   { return t.Kind == TokenOp && t.Text == text }
func isName(t Token, text string) bool { return t.Kind == TokenName && t.Text == text }
