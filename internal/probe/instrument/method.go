// Package instrument models the bytecode-instrumenter's rewrite as a
// transform over an abstract instruction stream, rather than over a real
// JVM classfile: this repository has no JVM bytecode-manipulation library
// to drive, so the systems requirement spelled out in the design notes —
// correct operand-stack balance across the three branch-decision paths —
// is expressed and tested against a small stack machine instead.
package instrument

// Kind discriminates the instructions a Method body is made of.
type Kind int

const (
	KindLine      Kind = iota // a line-number directive
	KindPush                  // pushes a value used by a following conditional jump
	KindCondJump              // a conditional jump opcode, wrapped by the instrumenter
	KindGoto                  // unconditional jump to a label
	KindLabel                 // a jump target
	KindOther                 // any non-conditional instruction; passed through unchanged
	KindReturn                // a method return; rewritten when the method returns boolean

	// Advice kinds only ever appear in an instrumented stream, never in
	// the pre-instrumentation Method.Body supplied by a caller.
	KindEntryAdvice      // method-entry hit call, prepended once
	KindLineAdvice       // line-hit call, emitted before a line's instructions
	KindBranchAdvice     // wraps an original KindCondJump
	KindBoolReturnAdvice // wraps an original KindReturn on a boolean method
)

// Instruction is one entry in a method's raw instruction stream, before
// instrumentation.
type Instruction struct {
	Kind Kind

	Line int    // KindLine
	Op   Opcode // KindCondJump
	// NaturalTaken is the outcome the original, un-instrumented
	// conditional would have produced given the operands that were
	// pushed ahead of it. The instrumenter does not evaluate real
	// operand values (there are none), so tests supply this directly to
	// exercise the "defer to original condition" path.
	NaturalTaken bool
	Target       string // KindCondJump, KindGoto, KindLabel

	// Value is the operand pushed by KindPush, or the boolean returned
	// by KindReturn.
	Value bool
}

// Method is the pre-instrumentation body of one non-abstract, non-native,
// non-synthetic method.
type Method struct {
	Class          string
	Name           string
	ReturnsBoolean bool
	Body           []Instruction
}

func Line(n int) Instruction                  { return Instruction{Kind: KindLine, Line: n} }
func Push(v bool) Instruction                 { return Instruction{Kind: KindPush, Value: v} }
func Label(name string) Instruction           { return Instruction{Kind: KindLabel, Target: name} }
func Goto(target string) Instruction          { return Instruction{Kind: KindGoto, Target: target} }
func Other() Instruction                      { return Instruction{Kind: KindOther} }
func Return(v bool) Instruction               { return Instruction{Kind: KindReturn, Value: v} }
func CondJump(op Opcode, taken bool, target string) Instruction {
	return Instruction{Kind: KindCondJump, Op: op, NaturalTaken: taken, Target: target}
}
