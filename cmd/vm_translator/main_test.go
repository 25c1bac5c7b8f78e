package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// File-mode translation of a simple arithmetic sequence: no bootstrap is prepended, and the
// net effect of the generated ASM is to leave SP=257 with RAM[256]=15 after push 7; push 8; add.
func TestVMTranslatorFileMode(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "SimpleAdd.vm")
	source := "push constant 7\npush constant 8\nadd\n"
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	status := Handler([]string{input}, nil)
	if status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got %d", status)
	}

	output, err := os.ReadFile(strings.TrimSuffix(input, ".vm") + ".asm")
	if err != nil {
		t.Fatalf("error reading output file: %v", err)
	}

	expected := []string{
		"@7", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1",
		"@8", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1",
		"@SP", "AM=M-1", "D=M", "A=A-1", "M=D+M",
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

	// Bootstrap should never be prepended in file mode, regardless of the program's content.
	if got[0] == "@256" {
		t.Errorf("file-mode translation must not prepend the bootstrap sequence")
	}
}

// Directory-mode translation prepends the bootstrap sequence only when one of the discovered
// modules defines a function named 'Sys.init', regardless of which file declares it.
func TestVMTranslatorDirectoryModeBootstrap(t *testing.T) {
	dir := t.TempDir()
	boot := "function Sys.init 0\ncall Main.main 0\npop temp 0\n"
	main := "function Main.main 0\npush constant 0\nreturn\n"

	// Deliberately not named 'Sys.vm': the bootstrap decision must key off the declared
	// function name, not the file it was found in.
	if err := os.WriteFile(filepath.Join(dir, "Boot.vm"), []byte(boot), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Main.vm"), []byte(main), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	status := Handler([]string{dir}, nil)
	if status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got %d", status)
	}

	output, err := os.ReadFile(filepath.Join(filepath.Dir(dir), filepath.Base(dir)+".asm"))
	if err != nil {
		t.Fatalf("error reading output file: %v", err)
	}

	got := strings.Split(strings.TrimRight(string(output), "\n"), "\n")
	expectedPrefix := []string{"@256", "D=A", "@SP", "M=D"}
	if len(got) < len(expectedPrefix) {
		t.Fatalf("output too short: %v", got)
	}
	for i, line := range expectedPrefix {
		if got[i] != line {
			t.Fatalf("bootstrap line %d: expected %q, got %q", i, line, got[i])
		}
	}
}
