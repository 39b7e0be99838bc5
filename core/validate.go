package core

// Guard validation for authoring surfaces.  Runtime evaluation never
// uses any of this: Evaluate absorbs bad references into false.

// GuardValidation reports problems found in a guard expression.
type GuardValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (v *GuardValidation) errf(msg string) {
	v.Errors = append(v.Errors, msg)
	v.Valid = false
}

func (v *GuardValidation) warnf(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

// ValidateGuard checks a guard expression against a declared memory
// schema.  Unknown keys and empty groups are errors.  A right-hand
// variable reference whose declared type can't structurally satisfy
// the operator is only a warning, since the mismatch surfaces as a
// false condition at evaluation time, not a failure.
func ValidateGuard(expr GuardExpression, schema []VarDecl) *GuardValidation {
	known := make(map[string]VarType, len(schema))
	for i := range schema {
		known[schema[i].Name] = schema[i].Type
	}

	v := &GuardValidation{Valid: true}
	validateGuard(expr, known, v)
	return v
}

func validateGuard(expr GuardExpression, known map[string]VarType, v *GuardValidation) {
	switch e := expr.(type) {
	case nil:
		return
	case *Condition:
		if !KnownOp(e.Op) {
			v.errf(`unknown operator "` + string(e.Op) + `"`)
		}
		leftType, have := known[e.Left]
		if !have {
			v.errf(`unknown variable "` + e.Left + `"`)
		}

		var ref *VariableRef
		switch r := e.Right.(type) {
		case *VariableRef:
			ref = r
		case VariableRef:
			ref = &r
		case Literal:
		case nil:
			v.errf("condition has no right operand")
		}
		if ref == nil {
			if have {
				checkOperandType(e, leftType, v)
			}
			return
		}

		rightType, haveRight := known[ref.Key]
		if !haveRight {
			v.errf(`unknown variable "` + ref.Key + `"`)
			return
		}
		if have {
			checkOperandType(e, leftType, v)
		}
		if numericOp(e.Op) && rightType != VarNumber && rightType != VarString {
			v.warnf(`operator ` + string(e.Op) + ` against variable "` + ref.Key +
				`" of type ` + string(rightType) + ` always evaluates false`)
		}
	case *Group:
		if len(e.Children) == 0 {
			v.errf("empty group")
		}
		for _, child := range e.Children {
			validateGuard(child, known, v)
		}
	}
}

func numericOp(op CompareOp) bool {
	switch op {
	case Lt, Lte, Gt, Gte:
		return true
	}
	return false
}

func checkOperandType(c *Condition, leftType VarType, v *GuardValidation) {
	switch {
	case numericOp(c.Op) && leftType == VarBoolean, numericOp(c.Op) && leftType == VarObject:
		v.warnf(`operator ` + string(c.Op) + ` on ` + string(leftType) +
			` variable "` + c.Left + `" always evaluates false`)
	case c.Op == Contains && leftType == VarNumber, c.Op == Contains && leftType == VarBoolean:
		v.warnf(`contains on ` + string(leftType) + ` variable "` + c.Left +
			`" always evaluates false`)
	}
}
