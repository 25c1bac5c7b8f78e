package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Self-contained fixtures exercising the two concrete compiler scenarios: a plain function
// and a method that writes one of its object's fields.
func TestJackCompiler(t *testing.T) {
	test := func(name, class, source string, expected []string) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, class+".jack")
			if err := os.WriteFile(input, []byte(source), 0644); err != nil {
				t.Fatalf("failed to write fixture: %v", err)
			}

			status := Handler([]string{input}, nil)
			if status != 0 {
				t.Fatalf("unexpected exit status code: expected 0 got %d", status)
			}

			output, err := os.ReadFile(filepath.Join(dir, class+".vm"))
			if err != nil {
				t.Fatalf("error reading output file: %v", err)
			}

			got := strings.Split(strings.TrimRight(string(output), "\n"), "\n")
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

	test("PlainFunction", "T", "class T { function int f() { return 1+2; } }", []string{
		"function T.f 0",
		"push constant 1",
		"push constant 2",
		"add",
		"return",
	})

	test("MethodFieldAssignment", "C",
		"class C { field int x; method void g() { let x = 3; return; } }",
		[]string{
			"function C.g 0",
			"push argument 0",
			"pop pointer 0",
			"push constant 3",
			"pop this 0",
			"push constant 0",
			"return",
		})
}
