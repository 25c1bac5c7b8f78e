package vm

import (
	"fmt"

	"github.com/pkg/errors"
	"its-hmny.dev/nand2tetris/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a typed 'vm.Program' (one Module per translation unit) and produces its
// 'asm.Program' counterpart, ready to be handed to the Assembler stage.
//
// Unlike the Assembler's own Lowerer (which only has to reshape an already linear AST) the VM
// Lowerer has actual lowering work to do: every VM operation expands to several Hack Asm lines,
// segment offsets have to be resolved against the register map and every function gets its own
// namespace for jump labels so that two functions can reuse the same label text.
type Lowerer struct {
	program Program

	curModule string         // Module currently being lowered, used to namespace 'static' vars
	curFunc   string         // Fully qualified function currently being lowered, used to namespace labels
	counters  map[string]int // Per-prefix monotonic counter, used to keep generated labels unique
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program 'p' (what we want to lower) to be non-nil.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p, counters: map[string]int{}}
}

// Triggers the lowering process for every module registered on the Lowerer.
//
// Modules are lowered in isolation (their instructions never cross into another module directly,
// calls are resolved by name at the Asm level) but all translated instructions are concatenated
// into a single, flat 'asm.Program' since the Assembler stage has no notion of modules.
func (vl *Lowerer) Lowerer() (asm.Program, error) {
	program := asm.Program{}

	for modName, module := range vl.program {
		vl.curModule = modName

		for _, operation := range module {
			var instructions []asm.Statement
			var err error

			switch op := operation.(type) {
			case MemoryOp:
				instructions, err = vl.lowerMemoryOp(op)
			case ArithmeticOp:
				instructions, err = vl.lowerArithmeticOp(op)
			case LabelDecl:
				instructions, err = vl.lowerLabelDecl(op)
			case GotoOp:
				instructions, err = vl.lowerGotoOp(op)
			case FuncDecl:
				instructions, err = vl.lowerFuncDecl(op)
			case FuncCallOp:
				instructions, err = vl.lowerFuncCallOp(op)
			case ReturnOp:
				instructions, err = vl.lowerReturnOp(op)
			default:
				err = fmt.Errorf("unrecognized operation %T in module %q", op, modName)
			}

			if err != nil {
				return nil, errors.Wrapf(err, "failed to lower module %q", modName)
			}
			program = append(program, instructions...)
		}
	}

	return program, nil
}

// Bootstrap prepends the standard Sys.init bootstrap sequence to an already-lowered program.
// Only directory-mode invocations with a 'Sys.init' function present are expected to call this.
func Bootstrap(program asm.Program) asm.Program {
	bootstrap := []asm.Statement{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	call := (&Lowerer{counters: map[string]int{}}).mustLowerFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	// This throwaway Lowerer numbers its return label from zero, just like the Lowerer that produced
	// 'program' does, so the label is renamed to one 'freshLabel' never produces to keep it unique.
	for i, stmt := range call {
		switch s := stmt.(type) {
		case asm.AInstruction:
			if s.Location == "RET_0" {
				call[i] = asm.AInstruction{Location: "BOOTSTRAP_RET"}
			}
		case asm.LabelDecl:
			if s.Name == "RET_0" {
				call[i] = asm.LabelDecl{Name: "BOOTSTRAP_RET"}
			}
		}
	}
	return append(bootstrap, append(call, program...)...)
}

func (vl *Lowerer) mustLowerFuncCallOp(op FuncCallOp) []asm.Statement {
	instructions, err := vl.lowerFuncCallOp(op)
	if err != nil {
		panic(err) // Only ever called with a well-formed, hardcoded FuncCallOp above
	}
	return instructions
}

// ----------------------------------------------------------------------------
// Segment resolution

// regMap maps the real VM segments to the Hack register holding their base address.
var regMap = map[SegmentType]string{
	Argument: "ARG",
	Local:    "LCL",
	This:     "THIS",
	That:     "THAT",
}

// tempBase is the first Hack RAM register backing the 'temp' segment. The original Jack toolchain
// this was distilled from hardcodes 'temp' onto R15, one of the R13-R15 general purpose scratch
// registers (this lowerer itself uses R13 and R14 as scratch during 'pop' and 'return'); that is
// a bug, not a feature, and is not reproduced here; temp lives at R5-R12 as the Hack platform
// convention dictates.
const tempBase = 5

// ----------------------------------------------------------------------------
// Memory Op

func (vl *Lowerer) lowerMemoryOp(op MemoryOp) ([]asm.Statement, error) {
	if op.Operation == Push {
		return vl.lowerPush(op)
	}
	return vl.lowerPop(op)
}

func (vl *Lowerer) lowerPush(op MemoryOp) ([]asm.Statement, error) {
	var loadD []asm.Statement

	switch op.Segment {
	case Constant:
		loadD = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
	case Argument, Local, This, That:
		loadD = []asm.Statement{
			asm.AInstruction{Location: regMap[op.Segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	case Pointer:
		if op.Offset > 1 {
			return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
		}
		reg := "THIS"
		if op.Offset == 1 {
			reg = "THAT"
		}
		loadD = []asm.Statement{
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	case Temp:
		if op.Offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
		}
		loadD = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprint(tempBase + op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	case Static:
		loadD = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", vl.curModule, op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	default:
		return nil, fmt.Errorf("unrecognized segment %q", op.Segment)
	}

	return append(loadD,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	), nil
}

func (vl *Lowerer) lowerPop(op MemoryOp) ([]asm.Statement, error) {
	var computeAddr []asm.Statement

	switch op.Segment {
	case Argument, Local, This, That:
		computeAddr = []asm.Statement{
			asm.AInstruction{Location: regMap[op.Segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
		}
	case Pointer:
		if op.Offset > 1 {
			return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
		}
		reg := "THIS"
		if op.Offset == 1 {
			reg = "THAT"
		}
		computeAddr = []asm.Statement{
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
	case Temp:
		if op.Offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
		}
		computeAddr = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprint(tempBase + op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
	case Static:
		computeAddr = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", vl.curModule, op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
	default:
		return nil, fmt.Errorf("unrecognized segment %q for pop", op.Segment)
	}

	// Stash the target address in R13 before overwriting D with the popped value, then
	// write the popped value back through that stashed address.
	return append(computeAddr,
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	), nil
}

// ----------------------------------------------------------------------------
// Arithmetic Op

func (vl *Lowerer) lowerArithmeticOp(op ArithmeticOp) ([]asm.Statement, error) {
	switch op.Operation {
	case Neg, Not:
		unaryComp := "-M"
		if op.Operation == Not {
			unaryComp = "!M"
		}
		return []asm.Statement{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: unaryComp},
		}, nil

	case Add, Sub, And, Or:
		binComp := map[ArithOpType]string{Add: "D+M", Sub: "M-D", And: "D&M", Or: "D|M"}[op.Operation]
		return []asm.Statement{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: binComp},
		}, nil

	case Eq, Gt, Lt:
		jump := map[ArithOpType]string{Eq: "JEQ", Gt: "JGT", Lt: "JLT"}[op.Operation]
		trueLabel := vl.freshLabel("IF_TRUE")
		endLabel := vl.freshLabel("IF_END")
		return []asm.Statement{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "D", Comp: "M-D"},
			asm.AInstruction{Location: trueLabel},
			asm.CInstruction{Comp: "D", Jump: jump},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: endLabel},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
			asm.LabelDecl{Name: trueLabel},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "-1"},
			asm.LabelDecl{Name: endLabel},
		}, nil
	}

	return nil, fmt.Errorf("unrecognized arithmetic operation %q", op.Operation)
}

// freshLabel returns a label built from 'prefix' that is unique within this Lowerer's output,
// using a per-Lowerer, per-prefix monotonic counter; it is deliberately not process-global so
// that lowering two independent programs in the same process (e.g. in tests) never collides.
func (vl *Lowerer) freshLabel(prefix string) string {
	n := vl.counters[prefix]
	vl.counters[prefix] = n + 1
	return fmt.Sprintf("%s_%d", prefix, n)
}

// ----------------------------------------------------------------------------
// Label/Goto Op

func (vl *Lowerer) scopedLabel(label string) string {
	if vl.curFunc == "" {
		return label
	}
	return fmt.Sprintf("%s$%s", vl.curFunc, label)
}

func (vl *Lowerer) lowerLabelDecl(op LabelDecl) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower empty label declaration")
	}
	return []asm.Statement{asm.LabelDecl{Name: vl.scopedLabel(op.Name)}}, nil
}

func (vl *Lowerer) lowerGotoOp(op GotoOp) ([]asm.Statement, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to lower jump with empty label")
	}
	target := vl.scopedLabel(op.Label)

	if op.Jump == Unconditional {
		return []asm.Statement{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}

	return []asm.Statement{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: target},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	}, nil
}

// ----------------------------------------------------------------------------
// Function/Call/Return Op

func (vl *Lowerer) lowerFuncDecl(op FuncDecl) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower function declaration with empty name")
	}
	vl.curFunc = op.Name

	instructions := []asm.Statement{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		instructions = append(instructions,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M+1"},
		)
	}
	return instructions, nil
}

// pushD appends the instructions to push whatever value is currently in D onto the stack.
func pushD() []asm.Statement {
	return []asm.Statement{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

func (vl *Lowerer) lowerFuncCallOp(op FuncCallOp) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower call with empty function name")
	}

	retLabel := vl.freshLabel("RET")
	instructions := []asm.Statement{
		asm.AInstruction{Location: retLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	instructions = append(instructions, pushD()...) // push return address

	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		instructions = append(instructions, asm.AInstruction{Location: reg}, asm.CInstruction{Dest: "D", Comp: "M"})
		instructions = append(instructions, pushD()...)
	}

	instructions = append(instructions,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(5 + op.NArgs)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: retLabel},
	)

	return instructions, nil
}

func (vl *Lowerer) lowerReturnOp(ReturnOp) ([]asm.Statement, error) {
	instructions := []asm.Statement{
		// FRAME (R13) = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// RET (R14) = *(FRAME-5)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// *ARG = pop()
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	// Restore THAT, THIS, ARG, LCL by walking backwards from FRAME (R13), in that order.
	for _, reg := range []string{"THAT", "THIS", "ARG", "LCL"} {
		instructions = append(instructions,
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "M", Comp: "D"},
		)
	}

	instructions = append(instructions,
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	)

	return instructions, nil
}
