package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHackAssembler(t *testing.T) {
	test := func(t *testing.T, source string, expected []string) {
		dir := t.TempDir()
		input := filepath.Join(dir, "program.asm")
		output := filepath.Join(dir, "program.hack")

		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}

		if status := Handler([]string{input, output}, nil); status != 0 {
			t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
		}

		compiled, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("error reading output file %s: %v", output, err)
		}

		got := string(compiled)
		for i, line := range expected {
			offset := i * 17 // 16 bits + '\n'
			if offset+16 > len(got) {
				t.Fatalf("output is shorter than expected (%d lines), got:\n%s", len(expected), got)
			}
			if got[offset:offset+16] != line {
				t.Errorf("line %d: expected %q, got %q", i, line, got[offset:offset+16])
			}
		}
	}

	t.Run("Add", func(t *testing.T) {
		// 2 + 3, stored at RAM[0] - @2, D=A, @3, D=D+A, @0, M=D
		source := "@2\nD=A\n@3\nD=D+A\n@0\nM=D\n"
		expected := []string{
			"0000000000000010",
			"1110110000010000",
			"0000000000000011",
			"1110000010010000",
			"0000000000000000",
			"1110001100001000",
		}
		test(t, source, expected)
	})

	t.Run("Max", func(t *testing.T) {
		source := "" +
			"@R0\n" +
			"D=M\n" +
			"@R1\n" +
			"D=D-M\n" +
			"@ISGT\n" +
			"D;JGT\n" +
			"@R1\n" +
			"D=M\n" +
			"@OUTPUT\n" +
			"0;JMP\n" +
			"(ISGT)\n" +
			"@R0\n" +
			"D=M\n" +
			"(OUTPUT)\n" +
			"@R2\n" +
			"M=D\n"
		expected := []string{
			"0000000000000000",
			"1111110000010000",
			"0000000000000001",
			"1111010011010000",
			"0000000000001010",
			"1110001100000001",
			"0000000000000001",
			"1111110000010000",
			"0000000000001100",
			"1110101010000111",
			"0000000000000000",
			"1111110000010000",
			"0000000000000010",
			"1110001100001000",
		}
		test(t, source, expected)
	})

	t.Run("labels resolve regardless of forward or backward reference", func(t *testing.T) {
		source := "@LOOP\n0;JMP\n(LOOP)\n@LOOP\n0;JMP\n"
		expected := []string{
			"0000000000000010",
			"1110101010000111",
			"0000000000000010",
			"1110101010000111",
		}
		test(t, source, expected)
	})

	t.Run("undeclared symbols are allocated starting at RAM[16]", func(t *testing.T) {
		source := "@foo\nD=A\n@bar\nD=A\n"
		expected := []string{
			"0000000000010000",
			"1110110000010000",
			"0000000000010001",
			"1110110000010000",
		}
		test(t, source, expected)
	})
}
