package pysource

import "strings"

// spacedOps are binary operators rendered with a space on each side.
var spacedOps = map[string]bool{
	"|": true, "=": true, "==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"+": true, "-": true, "*": true, "/": true, "//": true, "%": true, "**": true, "&": true,
	"^": true, "<<": true, ">>": true, "->": true, ":=": true, "@": true,
}

var keywordOps = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true, "if": true, "else": true, "lambda": true,
}

// render writes tokens back out in canonical spacing: "Dict[str, Any]",
// "str | None", "typing.Optional[int]", "f(x=1)".
func render(toks []Token) string {
	var b strings.Builder
	depth := 0
	for i, t := range toks {
		keyword := depth > 0 && (isOp(t, "=") || (i > 0 && isOp(toks[i-1], "=")))
		if i > 0 && !keyword && needsSpace(toks[i-1], t, i >= 2 && isOperand(toks[i-2])) {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
		if t.Kind == TokenOp {
			switch t.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
		if t.Kind == TokenOp && (t.Text == "," || t.Text == ":") && i+1 < len(toks) && !isCloser(toks[i+1]) {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func needsSpace(prev, cur Token, prevIsBinary bool) bool {
	if prev.Kind == TokenOp && (prev.Text == "," || prev.Text == ":") {
		return false
	}
	if cur.Kind == TokenOp {
		return spacedOps[cur.Text] && isOperand(prev)
	}
	if prev.Kind == TokenOp {
		if !spacedOps[prev.Text] {
			return false
		}
		// unary minus and star-args bind to their operand
		return prevIsBinary
	}
	return true
}

// isOperand reports whether t can end an expression, making a following
// operator binary.
func isOperand(t Token) bool {
	if t.Kind != TokenOp {
		return !keywordOps[t.Text]
	}
	return isCloser(t) || t.Text == "..."
}

func isCloser(t Token) bool {
	return t.Kind == TokenOp && (t.Text == ")" || t.Text == "]" || t.Text == "}")
}
