package core

import (
	"strconv"
	"strings"
)

// GuardExpression is a node in a guard tree: either a Condition or a
// Group.  The interface is closed; no other implementations exist.
type GuardExpression interface {
	// Negate reports whether this node's own result should be
	// inverted after evaluation.  Negation never propagates to
	// children.
	Negate() bool

	guardExpression()
}

// CompareOp is a Condition's comparison operator.
type CompareOp string

const (
	Eq       CompareOp = "eq"
	Neq      CompareOp = "neq"
	Lt       CompareOp = "lt"
	Lte      CompareOp = "lte"
	Gt       CompareOp = "gt"
	Gte      CompareOp = "gte"
	Contains CompareOp = "contains"
)

// KnownOp reports whether op is one of the defined comparison
// operators.
func KnownOp(op CompareOp) bool {
	switch op {
	case Eq, Neq, Lt, Lte, Gt, Gte, Contains:
		return true
	}
	return false
}

// GroupOp combines a Group's children.
type GroupOp string

const (
	And GroupOp = "and"
	Or  GroupOp = "or"
)

// KnownGroupOp reports whether op is one of the defined group
// operators.
func KnownGroupOp(op GroupOp) bool {
	switch op {
	case And, Or:
		return true
	}
	return false
}

// Operand is the right-hand side of a Condition: either a Literal or
// a VariableRef.
type Operand interface {
	operand()
}

// Literal is a constant right-hand operand.
type Literal struct {
	Value interface{}
}

func (Literal) operand() {}

// VariableRef is a right-hand operand resolved by looking up another
// context variable.
type VariableRef struct {
	Key string
}

func (VariableRef) operand() {}

// Condition compares the context variable named Left against the
// Right operand.
type Condition struct {
	Left    string
	Op      CompareOp
	Right   Operand
	Negated bool
}

func (c *Condition) Negate() bool   { return c.Negated }
func (*Condition) guardExpression() {}

// Group combines child expressions with And or Or.
//
// A well-formed Group has at least one child.  See RemoveChild for
// the promotion rule that maintains that invariant.
type Group struct {
	Op       GroupOp
	Children []GuardExpression
	Negated  bool
}

func (g *Group) Negate() bool   { return g.Negated }
func (*Group) guardExpression() {}

// RemoveChild removes the child at index i and returns the expression
// that should replace g.  When removal leaves exactly one child, that
// child is promoted in place of the group; when it leaves none, the
// result is nil (no guard), so no singleton or empty groups persist.
// An out-of-range index leaves g unchanged.
func (g *Group) RemoveChild(i int) GuardExpression {
	if i < 0 || len(g.Children) <= i {
		return g
	}
	g.Children = append(g.Children[:i], g.Children[i+1:]...)
	switch len(g.Children) {
	case 0:
		return nil
	case 1:
		return g.Children[0]
	}
	return g
}

// ContextView is read-only access to context variables during guard
// evaluation.
type ContextView interface {
	Lookup(key string) (interface{}, bool)
}

// Evaluate computes the boolean value of a guard expression against a
// context snapshot.
//
// Evaluation is pure and total: a missing variable or a
// type-incompatible comparison makes the condition false rather than
// an error.  Groups short-circuit: And stops at the first false
// child, Or at the first true child.  Each node's own negation is
// applied to that node's result last.
func Evaluate(expr GuardExpression, view ContextView) bool {
	if expr == nil {
		return true
	}

	var result bool
	switch e := expr.(type) {
	case *Condition:
		result = evalCondition(e, view)
	case *Group:
		result = evalGroup(e, view)
	}

	if expr.Negate() {
		result = !result
	}
	return result
}

func evalGroup(g *Group, view ContextView) bool {
	switch g.Op {
	case Or:
		for _, child := range g.Children {
			if Evaluate(child, view) {
				return true
			}
		}
		return false
	default: // And (also the zero GroupOp)
		for _, child := range g.Children {
			if !Evaluate(child, view) {
				return false
			}
		}
		return true
	}
}

func evalCondition(c *Condition, view ContextView) bool {
	left, have := view.Lookup(c.Left)
	if !have {
		return false
	}

	var right interface{}
	switch r := c.Right.(type) {
	case Literal:
		right = r.Value
	case *VariableRef:
		if right, have = view.Lookup(r.Key); !have {
			return false
		}
	case VariableRef:
		if right, have = view.Lookup(r.Key); !have {
			return false
		}
	default:
		return false
	}

	switch c.Op {
	case Eq:
		return looseEqual(left, right)
	case Neq:
		return !looseEqual(left, right)
	case Lt, Lte, Gt, Gte:
		l, lok := toNumber(left)
		r, rok := toNumber(right)
		if !lok || !rok {
			return false
		}
		switch c.Op {
		case Lt:
			return l < r
		case Lte:
			return l <= r
		case Gt:
			return l > r
		default:
			return l >= r
		}
	case Contains:
		return contains(left, right)
	}

	return false
}

// looseEqual compares numerically when both sides look numeric and as
// strings otherwise.  Values with no string form compare unequal.
func looseEqual(left, right interface{}) bool {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln == rn
	}
	ls, lok := asString(left)
	rs, rok := asString(right)
	if !lok || !rok {
		return false
	}
	return ls == rs
}

// toNumber coerces a value to float64.  Strings qualify only when
// they parse as numbers.
func toNumber(x interface{}) (float64, bool) {
	switch v := x.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asString(x interface{}) (string, bool) {
	switch v := x.(type) {
	case string:
		return v, true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}

// contains handles strings and sequences.  Anything else is false.
func contains(left, right interface{}) bool {
	switch l := left.(type) {
	case string:
		needle, ok := asString(right)
		if !ok {
			return false
		}
		return strings.Contains(l, needle)
	case []interface{}:
		for _, x := range l {
			if looseEqual(x, right) {
				return true
			}
		}
		return false
	case []string:
		for _, x := range l {
			if looseEqual(x, right) {
				return true
			}
		}
		return false
	}
	return false
}
