package asm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nand2tetris-go/toolchain/pkg/hack"
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes some a set of 'asm.Statement' and spits out their textual counterparts.
//
// The translation can be done without any additional data structure but the program.
type CodeGenerator struct {
	program []Statement // The set of statements to convert in Asm textual format
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
// Requires that argument Program 'p' (what we want to translate) is non-nil.
func NewCodeGenerator(p []Statement) CodeGenerator {
	return CodeGenerator{program: p}
}

// Translate each statement in the 'program' field to the Asm textual format.
//
// Each instruction will pass through the following step: evaluation, validation and
// then conversion to its textual representation (a string) so that it can be further
// elaborated by the caller (e.g. dumping to a file, runtime interpretation, ...).
func (cg *CodeGenerator) Generate() ([]string, error) {
	asm := make([]string, 0, len(cg.program))

	for _, statement := range cg.program {
		var generated string = ""
		var err error = nil

		switch tStatement := statement.(type) {
		case AInstruction:
			generated, err = cg.GenerateAInst(tStatement)
		case CInstruction:
			generated, err = cg.GenerateCInst(tStatement)
		case LabelDecl:
			generated, err = cg.GenerateLabelDecl(tStatement)
		default:
			err = fmt.Errorf("unrecognized statement '%T'", statement)
		}

		if err != nil {
			return nil, err
		}
		asm = append(asm, generated)
	}

	return asm, nil
}

// Specialized function to convert an A Instruction to the Asm format.
func (CodeGenerator) GenerateAInst(stmt AInstruction) (string, error) {
	if stmt.Location == "" {
		return "", errors.New("unable to produce empty A instruction location")
	}

	return fmt.Sprintf("@%s", stmt.Location), nil
}

// Specialized function to convert a C Instruction to the Asm format.
//
// 'dest' and 'jump' are both optional — a C instruction always carries 'comp', and may
// additionally assign a destination, test a jump condition, or do both at once (e.g.
// "D=D+1;JMP", used by loop counters that both advance and branch in one instruction).
func (cg *CodeGenerator) GenerateCInst(stmt CInstruction) (string, error) {
	if stmt.Comp == "" {
		return "", errors.New("expected 'comp' directive in C Instruction")
	}

	text := stmt.Comp
	if stmt.Dest != "" {
		text = fmt.Sprintf("%s=%s", stmt.Dest, text)
	}
	if stmt.Jump != "" {
		text = fmt.Sprintf("%s;%s", text, stmt.Jump)
	}
	return text, nil
}

// Specialized function to convert an Label Declaration to the Asm format.
func (cg *CodeGenerator) GenerateLabelDecl(stmt LabelDecl) (string, error) {
	if stmt.Name == "" {
		return "", errors.New("unable to produce empty label declaration")
	}
	if _, found := hack.BuiltInTable[stmt.Name]; found {
		return "", fmt.Errorf("unable to override built-in label '%s'", stmt.Name)
	}
	if strings.ContainsAny(stmt.Name, " \t()") {
		return "", fmt.Errorf("malformed label name '%s'", stmt.Name)
	}

	return fmt.Sprintf("(%s)", stmt.Name), nil
}
