package pysource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ekaya-inc/ekaya-sanity/pkg/jsonutil"
)

var (
	// ErrNotLiteral marks an expression that cannot be evaluated without running code.
	ErrNotLiteral = errors.New("not a literal expression")
	// ErrNoReturn marks a function without a top-level return statement.
	ErrNoReturn = errors.New("no return statement")
)

// EvalLiteral evaluates a literal expression: dicts, lists, tuples, strings,
// numbers, True, False and None.
func EvalLiteral(expr string) (jsonutil.Value, error) {
	lines, err := tokenize(expr)
	if err != nil {
		return jsonutil.Value{}, err
	}
	if len(lines) != 1 {
		return jsonutil.Value{}, fmt.Errorf("%w: expected a single expression", ErrNotLiteral)
	}
	return evalTokens(lines[0].Tokens, nil)
}

// ReturnLiteral evaluates the value returned by f. Names are resolved
// through assignments made earlier in f or at module level.
func (m *Module) ReturnLiteral(f *FunctionDef) (jsonutil.Value, error) {
	env := make(map[string]jsonutil.Value)
	for _, ln := range m.top {
		bindAssignment(env, ln.Tokens)
	}

	bodyIndent := -1
	for _, ln := range f.body {
		if bodyIndent < 0 || ln.Indent < bodyIndent {
			bodyIndent = ln.Indent
		}
	}
	for _, ln := range f.body {
		if ln.Indent != bodyIndent {
			continue
		}
		if isName(ln.Tokens[0], "return") {
			if len(ln.Tokens) == 1 {
				return jsonutil.NullValue(), nil
			}
			return evalTokens(ln.Tokens[1:], env)
		}
		bindAssignment(env, ln.Tokens)
	}
	return jsonutil.Value{}, fmt.Errorf("%s: %w", f.Name, ErrNoReturn)
}

// bindAssignment records NAME = literal and NAME: T = literal statements.
// A non-literal right-hand side unbinds the name.
func bindAssignment(env map[string]jsonutil.Value, toks []Token) {
	if len(toks) < 3 || toks[0].Kind != TokenName {
		return
	}
	eq := indexTopLevel(toks, "=")
	if eq < 0 || (eq != 1 && !isOp(toks[1], ":")) {
		return
	}
	v, err := evalTokens(toks[eq+1:], env)
	if err != nil {
		delete(env, toks[0].Text)
		return
	}
	env[toks[0].Text] = v
}

func evalTokens(toks []Token, env map[string]jsonutil.Value) (jsonutil.Value, error) {
	p := &literalParser{toks: toks, env: env}
	v, err := p.expr()
	if err != nil {
		return jsonutil.Value{}, err
	}
	if p.pos != len(p.toks) {
		return jsonutil.Value{}, fmt.Errorf("%w: unexpected %q", ErrNotLiteral, p.toks[p.pos].Text)
	}
	return v, nil
}

type literalParser struct {
	toks []Token
	pos  int
	env  map[string]jsonutil.Value
}

func (p *literalParser) peek() (Token, bool) {
	if p.pos >= len(p.toks) {
		return Token{}, false
	}
	return p.toks[p.pos], true
}

func (p *literalParser) acceptOp(text string) bool {
	if t, ok := p.peek(); ok && isOp(t, text) {
		p.pos++
		return true
	}
	return false
}

func (p *literalParser) expr() (jsonutil.Value, error) {
	t, ok := p.peek()
	if !ok {
		return jsonutil.Value{}, fmt.Errorf("%w: unexpected end of expression", ErrNotLiteral)
	}

	switch t.Kind {
	case TokenString:
		return p.concatStrings()
	case TokenNumber:
		p.pos++
		return parseNumber(t.Text, false)
	case TokenName:
		p.pos++
		switch t.Text {
		case "True":
			return jsonutil.BoolValue(true), nil
		case "False":
			return jsonutil.BoolValue(false), nil
		case "None":
			return jsonutil.NullValue(), nil
		case "dict":
			if next, ok := p.peek(); ok && isOp(next, "(") {
				return p.dictCall()
			}
		}
		if v, bound := p.env[t.Text]; bound {
			return v, nil
		}
		return jsonutil.Value{}, fmt.Errorf("%w: unresolved name %q", ErrNotLiteral, t.Text)
	}

	switch t.Text {
	case "-", "+":
		p.pos++
		n, ok := p.peek()
		if !ok || n.Kind != TokenNumber {
			return jsonutil.Value{}, fmt.Errorf("%w: unary %s on non-number", ErrNotLiteral, t.Text)
		}
		p.pos++
		return parseNumber(n.Text, t.Text == "-")
	case "{":
		p.pos++
		return p.dict()
	case "[":
		p.pos++
		return p.sequence("]")
	case "(":
		p.pos++
		return p.parenthesized()
	}
	return jsonutil.Value{}, fmt.Errorf("%w: unexpected %q", ErrNotLiteral, t.Text)
}

// concatStrings joins adjacent string literals.
func (p *literalParser) concatStrings() (jsonutil.Value, error) {
	var b strings.Builder
	for {
		t, ok := p.peek()
		if !ok || t.Kind != TokenString {
			break
		}
		s, err := decodeString(t.Text)
		if err != nil {
			return jsonutil.Value{}, err
		}
		b.WriteString(s)
		p.pos++
	}
	return jsonutil.StringValue(b.String()), nil
}

func (p *literalParser) dict() (jsonutil.Value, error) {
	obj := jsonutil.NewObject()
	for !p.acceptOp("}") {
		if p.acceptOp("**") {
			v, err := p.expr()
			if err != nil {
				return jsonutil.Value{}, err
			}
			src, err := v.AsObject()
			if err != nil {
				return jsonutil.Value{}, fmt.Errorf("%w: ** of non-dict", ErrNotLiteral)
			}
			for _, k := range src.Keys() {
				fv, _ := src.Get(k)
				obj.Set(k, fv)
			}
		} else {
			k, err := p.expr()
			if err != nil {
				return jsonutil.Value{}, err
			}
			if !p.acceptOp(":") {
				return jsonutil.Value{}, fmt.Errorf("%w: set literals are not supported", ErrNotLiteral)
			}
			v, err := p.expr()
			if err != nil {
				return jsonutil.Value{}, err
			}
			obj.Set(dictKey(k), v)
		}
		if !p.acceptOp(",") {
			if !p.acceptOp("}") {
				return jsonutil.Value{}, fmt.Errorf("%w: unterminated dict", ErrNotLiteral)
			}
			break
		}
	}
	return jsonutil.ObjectValue(obj), nil
}

// dictCall evaluates dict(key=value, ...).
func (p *literalParser) dictCall() (jsonutil.Value, error) {
	p.pos++ // (
	obj := jsonutil.NewObject()
	for !p.acceptOp(")") {
		t, ok := p.peek()
		if !ok || t.Kind != TokenName || p.pos+1 >= len(p.toks) || !isOp(p.toks[p.pos+1], "=") {
			return jsonutil.Value{}, fmt.Errorf("%w: dict() takes keyword arguments only", ErrNotLiteral)
		}
		p.pos += 2
		v, err := p.expr()
		if err != nil {
			return jsonutil.Value{}, err
		}
		obj.Set(t.Text, v)
		if !p.acceptOp(",") {
			if !p.acceptOp(")") {
				return jsonutil.Value{}, fmt.Errorf("%w: unterminated dict()", ErrNotLiteral)
			}
			break
		}
	}
	return jsonutil.ObjectValue(obj), nil
}

func (p *literalParser) sequence(closer string) (jsonutil.Value, error) {
	items := []jsonutil.Value{}
	for !p.acceptOp(closer) {
		v, err := p.expr()
		if err != nil {
			return jsonutil.Value{}, err
		}
		items = append(items, v)
		if !p.acceptOp(",") {
			if !p.acceptOp(closer) {
				return jsonutil.Value{}, fmt.Errorf("%w: expected %q", ErrNotLiteral, closer)
			}
			break
		}
	}
	return jsonutil.ArrayValue(items...), nil
}

// parenthesized handles grouping and tuples; tuples become arrays.
func (p *literalParser) parenthesized() (jsonutil.Value, error) {
	if p.acceptOp(")") {
		return jsonutil.ArrayValue(), nil
	}
	first, err := p.expr()
	if err != nil {
		return jsonutil.Value{}, err
	}
	if p.acceptOp(")") {
		return first, nil
	}
	if !p.acceptOp(",") {
		return jsonutil.Value{}, fmt.Errorf("%w: expected ')'", ErrNotLiteral)
	}
	rest, err := p.sequence(")")
	if err != nil {
		return jsonutil.Value{}, err
	}
	tail, _ := rest.AsArray()
	return jsonutil.ArrayValue(append([]jsonutil.Value{first}, tail...)...), nil
}

// dictKey renders a key the way JSON serialization of the dict would.
func dictKey(k jsonutil.Value) string {
	switch k.Kind() {
	case jsonutil.KindString:
		s, _ := k.AsString()
		return s
	case jsonutil.KindNull:
		return "null"
	case jsonutil.KindBool:
		b, _ := k.AsBool()
		return strconv.FormatBool(b)
	}
	return k.String()
}

func parseNumber(text string, negate bool) (jsonutil.Value, error) {
	lower := strings.ToLower(text)
	if strings.HasSuffix(lower, "j") {
		return jsonutil.Value{}, fmt.Errorf("%w: complex number %s", ErrNotLiteral, text)
	}
	if isLegacyOctal(text) {
		return jsonutil.Value{}, fmt.Errorf("%w: invalid number %s", ErrNotLiteral, text)
	}
	var f float64
	if i, err := strconv.ParseInt(text, 0, 64); err == nil {
		f = float64(i)
	} else {
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
		if err != nil {
			return jsonutil.Value{}, fmt.Errorf("%w: invalid number %s", ErrNotLiteral, text)
		}
		f = parsed
	}
	if negate {
		f = -f
	}
	return jsonutil.NumberValue(f), nil
}

// isLegacyOctal matches 0-prefixed integers like 017, which Go would read as octal.
func isLegacyOctal(text string) bool {
	if len(text) < 2 || text[0] != '0' {
		return false
	}
	for _, c := range text[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return strings.Trim(text, "0") != ""
}

// decodeString turns a string token (prefix, quotes and escapes) into its value.
func decodeString(tok string) (string, error) {
	i := strings.IndexAny(tok, `"'`)
	prefix := strings.ToLower(tok[:i])
	body := tok[i:]
	if strings.Contains(prefix, "b") {
		return "", fmt.Errorf("%w: bytes literal", ErrNotLiteral)
	}
	quoteLen := 1
	if len(body) >= 6 && (strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`)) {
		quoteLen = 3
	}
	body = body[quoteLen : len(body)-quoteLen]
	if strings.Contains(prefix, "f") && strings.ContainsAny(body, "{}") {
		return "", fmt.Errorf("%w: formatted string", ErrNotLiteral)
	}
	if strings.Contains(prefix, "r") {
		return body, nil
	}
	return unescape(body)
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'a':
			b.WriteByte('\a')
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+1+width > len(s) {
				return "", fmt.Errorf("%w: truncated \\%c escape", ErrNotLiteral, e)
			}
			r, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil || !utf8.ValidRune(rune(r)) {
				return "", fmt.Errorf("%w: invalid \\%c escape", ErrNotLiteral, e)
			}
			b.WriteRune(rune(r))
			i += width
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			r, _ := strconv.ParseUint(s[i:j], 8, 32)
			b.WriteRune(rune(r))
			i = j - 1
		case 'N':
			return "", fmt.Errorf("%w: named unicode escape", ErrNotLiteral)
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}
