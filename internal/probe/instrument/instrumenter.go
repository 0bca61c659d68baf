package instrument

import "github.com/rcourtman/reprod-probe/internal/probe/classfilter"

// Hitter receives the counting calls the instrumenter inserts.
type Hitter interface {
	HitByClassMethod(class, method string)
	HitLineByClassMethod(class, method string, line int)
}

// Decider is consulted by the branch and boolean-return advice inserted
// into every conditional jump and boolean-returning method.
type Decider interface {
	BranchDecision(class, method string, line int) int
	OverrideBooleanReturn(class, method string, original bool) bool
}

// Instrumenter installs method-entry advice, the line/branch visitor, and
// the boolean-return override advice on every method of a class accepted
// by the Filter. Abstract, native, and synthetic methods are the caller's
// responsibility to exclude from the Method list it builds — this package
// has no classfile reader to detect them from.
type Instrumenter struct {
	Filter  *classfilter.Filter
	Hitter  Hitter
	Decider Decider
}

// New returns an Instrumenter wired to the given filter, hit sink, and
// decision source.
func New(filter *classfilter.Filter, hitter Hitter, decider Decider) *Instrumenter {
	return &Instrumenter{Filter: filter, Hitter: hitter, Decider: decider}
}

// Accepts reports whether m's class passes the class filter. Callers
// should skip Instrument for classes this rejects.
func (ins *Instrumenter) Accepts(class string) bool { return ins.Filter.Accepts(class) }

// Instrument rewrites m's body into the instrumented instruction stream:
// method-entry advice first, then for each instruction a line-hit call
// right after every positive line directive (so before that line's
// instructions), a branch-decision wrapper in place of every conditional
// jump, and — for boolean-returning methods — a return-value override in
// place of every return.
func (ins *Instrumenter) Instrument(m Method) Method {
	out := make([]Instruction, 0, len(m.Body)+4)
	out = append(out, Instruction{Kind: KindEntryAdvice})

	for _, i := range m.Body {
		switch i.Kind {
		case KindLine:
			out = append(out, i)
			if i.Line > 0 {
				out = append(out, Instruction{Kind: KindLineAdvice, Line: i.Line})
			}
		case KindCondJump:
			out = append(out, Instruction{
				Kind:         KindBranchAdvice,
				Op:           i.Op,
				NaturalTaken: i.NaturalTaken,
				Target:       i.Target,
			})
		case KindReturn:
			if m.ReturnsBoolean {
				out = append(out, Instruction{Kind: KindBoolReturnAdvice, Value: i.Value})
			} else {
				out = append(out, i)
			}
		default:
			out = append(out, i)
		}
	}

	return Method{Class: m.Class, Name: m.Name, ReturnsBoolean: m.ReturnsBoolean, Body: out}
}
