package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVMTranslator(t *testing.T) {
	test := func(t *testing.T, source string, bootstrap bool, mustContain []string) {
		dir := t.TempDir()
		input := filepath.Join(dir, "Program.vm")
		output := filepath.Join(dir, "Program.asm")

		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}

		options := map[string]string{"output": output}
		if bootstrap {
			options["bootstrap"] = "true"
		}

		if status := Handler([]string{input}, options); status != 0 {
			t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
		}

		compiled, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("error reading output file: %v", err)
		}

		got := string(compiled)
		for _, want := range mustContain {
			if !strings.Contains(got, want) {
				t.Errorf("expected generated assembly to contain %q, got:\n%s", want, got)
			}
		}
	}

	t.Run("SimpleAdd", func(t *testing.T) {
		source := "push constant 7\npush constant 8\nadd\n"
		test(t, source, false, []string{"@7", "@8", "D+M", "M=D+M", "@SP", "M=M+1"})
	})

	t.Run("bootstrap sets SP to 256 and jumps to Sys.init", func(t *testing.T) {
		source := "function Sys.init 0\npush constant 0\nreturn\n"
		test(t, source, true, []string{"@256", "D=A", "@SP", "M=D", "@Sys.init", "0;JMP"})
	})

	t.Run("StaticTest uses a module-scoped label for the static segment", func(t *testing.T) {
		source := "push constant 111\npop static 0\npush static 0\n"
		test(t, source, false, []string{"@Program.0"})
	})

	t.Run("PointerTest", func(t *testing.T) {
		source := "push constant 3030\npop pointer 0\npush constant 3040\npop pointer 1\n"
		test(t, source, false, []string{"@THIS", "@THAT"})
	})

	t.Run("BasicLoop emits function-scoped labels for label/goto", func(t *testing.T) {
		source := "function Main.main 1\n" +
			"push constant 0\n" +
			"pop local 0\n" +
			"label LOOP_START\n" +
			"push local 0\n" +
			"push constant 1\n" +
			"add\n" +
			"pop local 0\n" +
			"goto LOOP_START\n"
		test(t, source, false, []string{"(Main.main$LOOP_START)", "@Main.main$LOOP_START", "0;JMP"})
	})

	t.Run("SimpleFunction honors the calling convention", func(t *testing.T) {
		source := "function SimpleFunction.test 2\n" +
			"push argument 0\n" +
			"push argument 1\n" +
			"add\n" +
			"return\n"
		test(t, source, false, []string{"(SimpleFunction.test)", "@LCL", "@ARG"})
	})
}
