package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Self-contained fixtures exercising the two concrete assembler scenarios: a straight-line
// program with only raw/built-in addresses, and a program with a forward label reference.
func TestHackAssembler(t *testing.T) {
	test := func(name, source string, expected []string) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, name+".asm")
			if err := os.WriteFile(input, []byte(source), 0644); err != nil {
				t.Fatalf("failed to write fixture: %v", err)
			}

			status := Handler([]string{input}, nil)
			if status != 0 {
				t.Fatalf("unexpected exit status code: expected 0 got %d", status)
			}

			output := strings.TrimSuffix(input, ".asm") + ".hack"
			compiled, err := os.ReadFile(output)
			if err != nil {
				t.Fatalf("error reading output file %s: %v", output, err)
			}

			got := strings.Split(strings.TrimRight(string(compiled), "\n"), "\n")
			if len(got) != len(expected) {
				t.Fatalf("expected %d lines, got %d: %v", len(expected), len(got), got)
			}
			for i := range expected {
				if got[i] != expected[i] {
					t.Errorf("line %d: expected %q, got %q", i, expected[i], got[i])
				}
			}
		})
	}

	test("RawAddresses", "@17\nD=A\n@R0\nM=D\n", []string{
		"0000000000010001",
		"1110110000010000",
		"0000000000000000",
		"1110001100001000",
	})

	test("ForwardLabel", "@LOOP\n0;JMP\n(LOOP)\n@1\n", []string{
		"0000000000000010",
		"1110101010000111",
		"0000000000000001",
	})
}
