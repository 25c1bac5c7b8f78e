package asm_test

import (
	"strings"
	"testing"

	"its-hmny.dev/nand2tetris/pkg/asm"
)

func TestParserCInstructions(t *testing.T) {
	test := func(source string, expected asm.CInstruction) {
		t.Run(source, func(t *testing.T) {
			parser := asm.NewParser(strings.NewReader(source))
			program, err := parser.Parse()
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if len(program) != 1 {
				t.Fatalf("expected exactly one instruction, got %d", len(program))
			}

			inst, ok := program[0].(asm.CInstruction)
			if !ok {
				t.Fatalf("expected a CInstruction, got %T", program[0])
			}
			if inst != expected {
				t.Fatalf("expected %+v, got %+v", expected, inst)
			}
		})
	}

	// Dest-only and jump-only C Instructions, each should leave the other field empty.
	test("D=A", asm.CInstruction{Dest: "D", Comp: "A"})
	test("0;JMP", asm.CInstruction{Comp: "0", Jump: "JMP"})

	// A C Instruction can carry both a 'dest' and a 'jump' at once, e.g. a loop decrement
	// that both stores the new counter value and branches on it in a single instruction.
	test("D=D+1;JGT", asm.CInstruction{Dest: "D", Comp: "D+1", Jump: "JGT"})
	test("AM=M-1;JNE", asm.CInstruction{Dest: "AM", Comp: "M-1", Jump: "JNE"})
}
