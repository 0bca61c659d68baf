package instrument

import "fmt"

// Trace records what an Execute run observed, for assertions in tests:
// the operand-stack depth left when the run ends is recorded, and the
// number of operands popped by each branch decision is recorded so the
// operand-stack-discipline invariant (§8) is directly verifiable.
type Trace struct {
	StackDepth    int
	BranchResults []BranchResult
	ReturnedValue bool
	HasReturn     bool
}

// BranchResult captures one branch-advice evaluation.
type BranchResult struct {
	Line    int
	Op      Opcode
	Decision int
	Popped  int
	Taken   bool
}

// Execute runs an instrumented method body against a simple operand
// stack. stack holds the operands already pushed by KindPush
// instructions; each branch advice pops Arity(op) booleans off it and
// always defers to instr.NaturalTaken, and no hit calls are made. It is a
// model executor, not a JVM: its only purpose is
// to exercise the instrumenter's control-flow wiring end to end.
func Execute(m Method, stack []bool) (Trace, error) {
	labels := make(map[string]int)
	for i, instr := range m.Body {
		if instr.Kind == KindLabel {
			labels[instr.Target] = i
		}
	}

	var trace Trace
	currentLine := 0
	pc := 0
	for pc < len(m.Body) {
		instr := m.Body[pc]
		switch instr.Kind {
		case KindEntryAdvice:
			// Hitter is optional in pure-simulation tests.
		case KindLine:
			currentLine = instr.Line
		case KindPush:
			stack = append(stack, instr.Value)
		case KindLabel, KindOther:
			// no-op
		case KindGoto:
			target, ok := labels[instr.Target]
			if !ok {
				return trace, fmt.Errorf("unknown jump target %q", instr.Target)
			}
			pc = target
			continue
		case KindBranchAdvice:
			n := Arity(instr.Op)
			if len(stack) < n {
				return trace, fmt.Errorf("stack underflow at line %d: need %d operands, have %d", currentLine, n, len(stack))
			}
			stack = stack[:len(stack)-n]

			decision := -1
			taken := instr.NaturalTaken
			trace.BranchResults = append(trace.BranchResults, BranchResult{
				Line: currentLine, Op: instr.Op, Decision: decision, Popped: n, Taken: taken,
			})
			if taken {
				target, ok := labels[instr.Target]
				if !ok {
					return trace, fmt.Errorf("unknown jump target %q", instr.Target)
				}
				pc = target
				continue
			}
		case KindReturn:
			trace.HasReturn = true
			trace.ReturnedValue = instr.Value
		case KindBoolReturnAdvice:
			trace.HasReturn = true
			trace.ReturnedValue = instr.Value
		case KindLineAdvice:
			// counted separately by the caller via a Hitter, if supplied.
		}
		pc++
	}
	trace.StackDepth = len(stack)
	return trace, nil
}

// ExecuteWithRuntime runs m the way instrumented bytecode actually would:
// hit and branch-decision calls are routed through hitter/decider, and a
// branch-advice's decision can come back -1 (defer to instr.NaturalTaken),
// 1 (force taken), or 0 (force fallthrough). Like Execute, it runs a body
// that has already gone through Instrumenter.Instrument.
func ExecuteWithRuntime(class string, m Method, stack []bool, hitter Hitter, decider Decider) (Trace, error) {
	labels := make(map[string]int)
	for i, instr := range m.Body {
		if instr.Kind == KindLabel {
			labels[instr.Target] = i
		}
	}

	var trace Trace
	currentLine := 0
	pc := 0
	for pc < len(m.Body) {
		instr := m.Body[pc]
		switch instr.Kind {
		case KindEntryAdvice:
			hitter.HitByClassMethod(class, m.Name)
		case KindLineAdvice:
			hitter.HitLineByClassMethod(class, m.Name, instr.Line)
		case KindLine:
			currentLine = instr.Line
		case KindPush:
			stack = append(stack, instr.Value)
		case KindLabel, KindOther:
			// no-op
		case KindGoto:
			target, ok := labels[instr.Target]
			if !ok {
				return trace, fmt.Errorf("unknown jump target %q", instr.Target)
			}
			pc = target
			continue
		case KindBranchAdvice:
			n := Arity(instr.Op)
			if len(stack) < n {
				return trace, fmt.Errorf("stack underflow at line %d: need %d operands, have %d", currentLine, n, len(stack))
			}
			stack = stack[:len(stack)-n]

			decision := decider.BranchDecision(class, m.Name, currentLine)
			taken := instr.NaturalTaken
			switch decision {
			case 1:
				taken = true
			case 0:
				taken = false
			}
			trace.BranchResults = append(trace.BranchResults, BranchResult{
				Line: currentLine, Op: instr.Op, Decision: decision, Popped: n, Taken: taken,
			})
			if taken {
				target, ok := labels[instr.Target]
				if !ok {
					return trace, fmt.Errorf("unknown jump target %q", instr.Target)
				}
				pc = target
				continue
			}
		case KindReturn:
			trace.HasReturn = true
			trace.ReturnedValue = instr.Value
		case KindBoolReturnAdvice:
			trace.HasReturn = true
			trace.ReturnedValue = decider.OverrideBooleanReturn(class, m.Name, instr.Value)
		}
		pc++
	}
	trace.StackDepth = len(stack)
	return trace, nil
}
