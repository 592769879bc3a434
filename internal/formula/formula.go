package formula

import (
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
)

// Resolver looks up a counter value by name.
type Resolver func(name string) (value int64, found bool)

type kind uint8

const (
	kindNumber kind = iota
	kindIdent
	kindAdd
	kindSub
	kindMul
	kindDiv
	kindNeg
	kindOpen
	kindClose
)

type token struct {
	// kind selects which of the other fields is meaningful.
	kind kind
	// num is the value of a literal.
	num int64
	// ident is the name of a variable.
	ident string
}

// Expr is a compiled expression.
type Expr struct {
	// rpn is the token stream in evaluation order.
	rpn []token
	// idents are the referenced variables, sorted and unique.
	idents []string
}

// Compile tokenizes expr and orders it for evaluation.
func Compile(expr string) *Expr {
	tokens := tokenize(strings.TrimSpace(expr))

	set := make(map[string]struct{})
	for _, t := range tokens {
		if t.kind == kindIdent {
			set[t.ident] = struct{}{}
		}
	}

	return &Expr{
		rpn:    toRPN(tokens),
		idents: slices.Sorted(maps.Keys(set)),
	}
}

// Evaluate compiles and evaluates expr in one step.
func Evaluate(expr string, resolve Resolver, missingAsZero bool) int64 {
	return Compile(expr).Eval(resolve, missingAsZero)
}

// Identifiers returns the sorted distinct names expr refers to.
func Identifiers(expr string) []string {
	return Compile(expr).Identifiers()
}

// Identifiers returns the sorted distinct names the expression refers to.
func (e *Expr) Identifiers() []string {
	return slices.Clone(e.idents)
}

// Empty reports whether the expression has nothing to evaluate.
func (e *Expr) Empty() bool {
	return len(e.rpn) == 0
}

// Eval computes the expression. A name the resolver does not know counts as
// 0 when missingAsZero is set and 1 otherwise. An empty expression is 0.
func (e *Expr) Eval(resolve Resolver, missingAsZero bool) int64 {
	missing := int64(1)
	if missingAsZero {
		missing = 0
	}

	stack := make([]int64, 0, len(e.rpn))

	pop := func() int64 {
		if len(stack) == 0 {
			return 0
		}

		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		return v
	}

	for _, t := range e.rpn {
		switch t.kind {
		case kindNumber:
			stack = append(stack, t.num)
		case kindIdent:
			v := missing
			if resolve != nil {
				if got, ok := resolve(t.ident); ok {
					v = got
				}
			}

			stack = append(stack, v)
		case kindNeg:
			stack = append(stack, button.SaturatingNeg(pop()))
		case kindAdd, kindSub, kindMul, kindDiv:
			b, a := pop(), pop()
			stack = append(stack, binary(t.kind, a, b))
		case kindOpen, kindClose:
		}
	}

	return pop()
}

func binary(k kind, a, b int64) int64 {
	switch k {
	case kindAdd:
		return button.SaturatingAdd(a, b)
	case kindSub:
		return button.SaturatingSub(a, b)
	case kindMul:
		return button.SaturatingMul(a, b)
	case kindDiv:
		if b == 0 {
			return 0
		}

		return button.SaturatingDiv(a, b)
	default:
		return 0
	}
}

func precedence(k kind) int {
	switch k {
	case kindNeg:
		return 3
	case kindMul, kindDiv:
		return 2
	case kindAdd, kindSub:
		return 1
	default:
		return -1
	}
}

func isOperator(k kind) bool {
	return precedence(k) > 0
}

// toRPN reorders tokens with the shunting-yard algorithm.
// Binary operators are left-associative, unary minus is right-associative.
// Unbalanced parentheses are tolerated.
func toRPN(tokens []token) []token {
	var (
		out = make([]token, 0, len(tokens))
		ops []token
	)

	for _, t := range tokens {
		switch {
		case t.kind == kindNumber || t.kind == kindIdent:
			out = append(out, t)
		case isOperator(t.kind):
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if !isOperator(top.kind) || t.kind == kindNeg ||
					precedence(top.kind) < precedence(t.kind) {
					break
				}

				out = append(out, top)
				ops = ops[:len(ops)-1]
			}

			ops = append(ops, t)
		case t.kind == kindOpen:
			ops = append(ops, t)
		case t.kind == kindClose:
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]

				if top.kind == kindOpen {
					break
				}

				out = append(out, top)
			}
		}
	}

	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].kind != kindOpen {
			out = append(out, ops[i])
		}
	}

	return out
}

func tokenize(expr string) []token {
	var (
		tokens    []token
		afterTerm bool
	)

	for i := 0; i < len(expr); {
		c := expr[i]

		switch {
		case isSpace(c):
			i++
		case isDigit(c):
			start := i
			for i < len(expr) && isDigit(expr[i]) {
				i++
			}

			tokens = append(tokens, token{kind: kindNumber, num: parseDecimal(expr[start:i])})
			afterTerm = true
		case isQuote(c):
			name, next, ok := quoted(expr, i)
			if !ok {
				i++
				continue
			}

			tokens = append(tokens, token{kind: kindIdent, ident: name})
			i = next
			afterTerm = true
		case c == '_' || isLetter(c):
			start := i
			for i < len(expr) && (expr[i] == '_' || isLetter(expr[i]) || isDigit(expr[i])) {
				i++
			}

			ident := expr[start:i]

			if strings.EqualFold(ident, "var") {
				if name, next, ok := varCall(expr, i); ok {
					tokens = append(tokens, token{kind: kindIdent, ident: name})
					i = next
					afterTerm = true

					continue
				}
			}

			tokens = append(tokens, token{kind: kindIdent, ident: ident})
			afterTerm = true
		default:
			i++

			t, ok := symbol(c, afterTerm)
			if !ok {
				continue
			}

			tokens = append(tokens, t)
			afterTerm = t.kind == kindClose
		}
	}

	return tokens
}

func symbol(c byte, afterTerm bool) (token, bool) {
	switch c {
	case '+':
		return token{kind: kindAdd}, true
	case '*':
		return token{kind: kindMul}, true
	case '/':
		return token{kind: kindDiv}, true
	case '-':
		if afterTerm {
			return token{kind: kindSub}, true
		}

		return token{kind: kindNeg}, true
	case '(':
		return token{kind: kindOpen}, true
	case ')':
		return token{kind: kindClose}, true
	default:
		return token{}, false
	}
}

// varCall parses `( "name" )` following a var keyword that ends at i.
func varCall(expr string, i int) (string, int, bool) {
	j := skipSpace(expr, i)
	if j >= len(expr) || expr[j] != '(' {
		return "", 0, false
	}

	name, j, ok := quoted(expr, skipSpace(expr, j+1))
	if !ok {
		return "", 0, false
	}

	j = skipSpace(expr, j)
	if j >= len(expr) || expr[j] != ')' {
		return "", 0, false
	}

	return name, j + 1, true
}

// quoted reads a name enclosed in matching quotes starting at i.
func quoted(expr string, i int) (string, int, bool) {
	if i >= len(expr) || !isQuote(expr[i]) {
		return "", 0, false
	}

	end := strings.IndexByte(expr[i+1:], expr[i])
	if end < 0 {
		return "", 0, false
	}

	return expr[i+1 : i+1+end], i + end + 2, true
}

// parseDecimal converts a digit run, saturating on overflow.
func parseDecimal(digits string) int64 {
	var v int64

	for i := range len(digits) {
		d := int64(digits[i] - '0')
		if v > (math.MaxInt64-d)/10 {
			return math.MaxInt64
		}

		v = v*10 + d
	}

	return v
}

func skipSpace(expr string, i int) int {
	for i < len(expr) && isSpace(expr[i]) {
		i++
	}

	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '`'
}
