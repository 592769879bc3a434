// Package formula evaluates the integer expressions of computed readouts.
//
// Expressions use + - * / with the usual precedence, unary minus and
// parentheses. Operands are decimal literals or counter names: bare
// identifiers, quoted names ("a b", 'x', `y`) or var("name"). Arithmetic
// saturates at the int64 range and division by zero yields zero. Characters
// outside the grammar are skipped, so a malformed expression still evaluates.
package formula
