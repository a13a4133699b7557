package vm

import (
	"fmt"

	"github.com/nand2tetris-go/toolchain/pkg/asm"
)

// pointerSegment maps a segment kept as a pointer (base address held in a register,
// effective address computed as base+offset) to the register holding that base.
var pointerSegment = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Module' (one translation unit — what the Jack compiler emits
// per class) and produces its 'asm.Program' counterpart.
//
// Label uniqueness (for comparisons and call-site return addresses) is tracked on the
// Lowerer instance rather than a package-level counter: two Lowerer values processing two
// modules concurrently must not interfere, and re-lowering the same module twice must
// produce byte-identical output.
type Lowerer struct {
	moduleName   string // Used to qualify 'static' locations (Module.i) and generated labels
	functionName string // Current function, used to scope user labels (Function$label)

	nCompare uint // Running counter disambiguating eq/gt/lt branch labels
	nCall    uint // Running counter disambiguating call-site return address labels
}

// NewLowerer returns a Lowerer for the module named moduleName.
func NewLowerer(moduleName string) *Lowerer {
	return &Lowerer{moduleName: moduleName}
}

// Lower converts every operation in module, in order, to its 'asm.Instruction' sequence.
func (l *Lowerer) Lower(module Module) (asm.Program, error) {
	program := asm.Program{}

	for _, operation := range module {
		var instructions []asm.Instruction
		var err error

		switch op := operation.(type) {
		case MemoryOp:
			instructions, err = l.lowerMemoryOp(op)
		case ArithmeticOp:
			instructions, err = l.lowerArithmeticOp(op)
		case LabelDecl:
			instructions, err = l.lowerLabelDecl(op)
		case GotoOp:
			instructions, err = l.lowerGotoOp(op)
		case FuncDecl:
			instructions, err = l.lowerFuncDecl(op)
		case FuncCallOp:
			instructions, err = l.lowerFuncCall(op)
		case ReturnOp:
			instructions, err = l.lowerReturn(op)
		default:
			err = fmt.Errorf("unrecognized operation '%T'", operation)
		}

		if err != nil {
			return nil, err
		}
		program = append(program, instructions...)
	}

	return program, nil
}

// ----------------------------------------------------------------------------
// Memory operations

// pushD appends the canonical "push whatever D currently holds" trailer.
func pushD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// popToD appends the canonical "pop the stack's top into D" prelude.
func popToD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

func (l *Lowerer) lowerMemoryOp(op MemoryOp) ([]asm.Instruction, error) {
	if op.Segment == Pointer && op.Offset > 1 {
		return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}

	switch op.Operation {
	case Push:
		return l.lowerPush(op.Segment, op.Offset)
	case Pop:
		return l.lowerPop(op.Segment, op.Offset)
	default:
		return nil, fmt.Errorf("unrecognized OperationType '%s'", op.Operation)
	}
}

// directAddress returns the fixed asm symbol backing Static/Temp/Pointer segments,
// which (unlike Local/Argument/This/That) are addressed directly, without indirection
// through a base-register pointer.
func (l *Lowerer) directAddress(segment SegmentType, offset uint16) (string, error) {
	switch segment {
	case Static:
		return fmt.Sprintf("%s.%d", l.moduleName, offset), nil
	case Temp:
		return fmt.Sprintf("%d", 5+offset), nil
	case Pointer:
		if offset == 0 {
			return "THIS", nil
		}
		return "THAT", nil
	default:
		return "", fmt.Errorf("segment '%s' is not a direct-address segment", segment)
	}
}

func (l *Lowerer) lowerPush(segment SegmentType, offset uint16) ([]asm.Instruction, error) {
	if segment == Constant {
		return append([]asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}, pushD()...), nil
	}

	if base, ok := pointerSegment[segment]; ok {
		return append([]asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "A", Comp: "D+M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil
	}

	address, err := l.directAddress(segment, offset)
	if err != nil {
		return nil, err
	}
	return append([]asm.Instruction{
		asm.AInstruction{Location: address},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}, pushD()...), nil
}

func (l *Lowerer) lowerPop(segment SegmentType, offset uint16) ([]asm.Instruction, error) {
	if segment == Constant {
		return nil, fmt.Errorf("cannot 'pop' into the 'constant' segment")
	}

	if base, ok := pointerSegment[segment]; ok {
		instructions := []asm.Instruction{
			// Stash the target address in R13 before the pop, since the pop itself
			// clobbers D (the value we're about to store).
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "D", Comp: "D+M"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
		instructions = append(instructions, popToD()...)
		instructions = append(instructions,
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		)
		return instructions, nil
	}

	address, err := l.directAddress(segment, offset)
	if err != nil {
		return nil, err
	}
	instructions := popToD()
	instructions = append(instructions,
		asm.AInstruction{Location: address},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)
	return instructions, nil
}

// ----------------------------------------------------------------------------
// Arithmetic operations

func (l *Lowerer) lowerArithmeticOp(op ArithmeticOp) ([]asm.Instruction, error) {
	switch op.Operation {
	case Neg:
		return l.unary("-M"), nil
	case Not:
		return l.unary("!M"), nil
	case Add:
		return l.binary("D+M"), nil
	case Sub:
		return l.binary("M-D"), nil
	case And:
		return l.binary("D&M"), nil
	case Or:
		return l.binary("D|M"), nil
	case Eq:
		return l.comparison("JEQ"), nil
	case Gt:
		return l.comparison("JGT"), nil
	case Lt:
		return l.comparison("JLT"), nil
	default:
		return nil, fmt.Errorf("unrecognized ArithOpType '%s'", op.Operation)
	}
}

// unary rewrites the stack's top in place: no Stack Pointer movement needed.
func (l *Lowerer) unary(comp string) []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}
}

// binary pops the top two values (D=y, M=x) and leaves comp(x,y) on the stack.
func (l *Lowerer) binary(comp string) []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}
}

// comparison pops x, y and pushes true (-1) or false (0) depending on whether x jump y
// holds, using a disambiguated pair of labels so repeated comparisons don't collide.
func (l *Lowerer) comparison(jump string) []asm.Instruction {
	l.nCompare++
	trueLabel := fmt.Sprintf("%s$COMPARE_TRUE_%d", l.moduleName, l.nCompare)
	endLabel := fmt.Sprintf("%s$COMPARE_END_%d", l.moduleName, l.nCompare)

	return []asm.Instruction{
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
	}
}

// ----------------------------------------------------------------------------
// Branching and functions

// scopedLabel qualifies a user-written label with the enclosing function, matching the
// convention that VM labels are only visible inside the function that declares them.
func (l *Lowerer) scopedLabel(name string) string {
	if l.functionName == "" {
		return name
	}
	return fmt.Sprintf("%s$%s", l.functionName, name)
}

func (l *Lowerer) lowerLabelDecl(op LabelDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower an empty label declaration")
	}
	return []asm.Instruction{asm.LabelDecl{Name: l.scopedLabel(op.Name)}}, nil
}

func (l *Lowerer) lowerGotoOp(op GotoOp) ([]asm.Instruction, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to lower a jump to an empty label")
	}
	target := l.scopedLabel(op.Label)

	if op.Jump == Goto {
		return []asm.Instruction{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}
	if op.Jump == IfGoto {
		instructions := popToD()
		instructions = append(instructions,
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "D", Jump: "JNE"},
		)
		return instructions, nil
	}
	return nil, fmt.Errorf("unrecognized JumpType '%s'", op.Jump)
}

// lowerFuncDecl emits the function's entry label followed by NLocal pushes of the
// constant 0, which zero-initializes its local segment (locals are otherwise whatever
// garbage was left on the stack by the previous frame).
func (l *Lowerer) lowerFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower an empty function declaration")
	}
	l.functionName = op.Name

	instructions := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		push, _ := l.lowerPush(Constant, 0)
		instructions = append(instructions, push...)
	}
	return instructions, nil
}

// lowerFuncCall implements the standard nand2tetris calling convention: push a fresh
// return address and the caller's four segment pointers, reposition ARG/LCL for the
// callee, then jump. The callee's own 'return' unwinds exactly this frame.
func (l *Lowerer) lowerFuncCall(op FuncCallOp) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower an empty function call")
	}
	l.nCall++
	returnLabel := fmt.Sprintf("%s$ret.%s.%d", op.Name, l.moduleName, l.nCall)

	instructions := []asm.Instruction{
		asm.AInstruction{Location: returnLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	instructions = append(instructions, pushD()...)
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		instructions = append(instructions,
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		instructions = append(instructions, pushD()...)
	}

	// ARG = SP - nArgs - 5 (rewind past the args we just passed and the 5 saved values)
	instructions = append(instructions,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(int(op.NArgs) + 5)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = SP
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto f
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		// (return address)
		asm.LabelDecl{Name: returnLabel},
	)

	return instructions, nil
}

// lowerReturn restores the caller's frame. The return address is snapshotted into R14
// before '*ARG = pop()' runs: a 0-argument callee can have ARG alias the frame's return
// slot, so storing RET after that write would read back the value the callee just wrote.
func (l *Lowerer) lowerReturn(ReturnOp) ([]asm.Instruction, error) {
	instructions := []asm.Instruction{
		// R13 (FRAME) = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// R14 (RET) = *(FRAME-5), snapshotted before '*ARG = pop()' can clobber it
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	// *ARG = pop()
	instructions = append(instructions, popToD()...)
	instructions = append(instructions,
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)

	// THAT, THIS, ARG, LCL = *(FRAME-1..4), restored from R13 in descending order
	for i, reg := range []string{"THAT", "THIS", "ARG", "LCL"} {
		instructions = append(instructions,
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(i + 1)},
			asm.CInstruction{Dest: "A", Comp: "D-A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "M", Comp: "D"},
		)
	}

	// goto RET
	instructions = append(instructions,
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	)

	return instructions, nil
}
