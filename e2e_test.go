package main

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gobf/pkg/errs"
)

// sample copies a program from _bfapps into a temporary directory, so modes
// that write next to the program leave the repository alone.
func sample(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("_bfapps", name))
	if err != nil {
		t.Fatalf("Failed to read sample: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code, stdout.String(), stderr.String()}
}

func TestRunSamples(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
		tape   string
	}{
		{"hello.bf", "", "Hello World!\n", "C2: 72\nC3: 100\nC4: 87\nC5: 33\nC6: 10\n"},
		{"ok.bf", "", "OK\n", "C0: 79\nC1: 75\nC2: 10\n"},
		{"echo.bf", "tape", "tape", "C0: 0\n"},
		{"drain.bf", "", "A", "C0: 0\nC1: 65\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, tt.input, "-p", sample(t, tt.name))
			if r.code != errs.ExitOK {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			if !strings.HasPrefix(r.stdout, tt.output+"\n") {
				t.Errorf("output = %q; want prefix %q", r.stdout, tt.output)
			}
			if !strings.Contains(r.stdout, tt.tape) {
				t.Errorf("tape dump missing %q:\n%s", tt.tape, r.stdout)
			}
			for _, metric := range []string{"PROG_SIZE = ", "EXEC_TIME = ", "EXEC_MOVE = ", "DATA_MOVE = ", "DATA_READ = ", "DATA_WRITE = "} {
				if !strings.Contains(r.stdout, metric) {
					t.Errorf("metrics missing %q", metric)
				}
			}
		})
	}
}

func TestInputAndOutputFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(in, []byte("from a file"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := runCLI(t, "ignored", "-p", sample(t, "echo.bf"), "-i", in, "-o", out)
	if r.code != errs.ExitOK {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "from a file" {
		t.Errorf("output file = %q", got)
	}
	if !strings.HasPrefix(r.stdout, "\nC0: 0\n") {
		t.Errorf("stdout = %q", r.stdout)
	}
}

func TestCheckMode(t *testing.T) {
	if r := runCLI(t, "", "-check", "-p", sample(t, "ok.bf")); r.code != errs.ExitOK || r.stdout != "" {
		t.Errorf("check ok.bf: exit %d, stdout %q, stderr %q", r.code, r.stdout, r.stderr)
	}
	r := runCLI(t, "", "-check", "-p", sample(t, "unbalanced.bf"))
	if r.code != errs.ExitUnbalancedLoop {
		t.Errorf("check unbalanced.bf: exit %d; want %d", r.code, errs.ExitUnbalancedLoop)
	}
	if !strings.HasPrefix(r.stderr, "UnbalancedLoop: ") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestRewriteMode(t *testing.T) {
	r := runCLI(t, "", "-rewrite", "-p", sample(t, "ok.bf"))
	if r.code != errs.ExitOK {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	want := strings.Repeat("+", 79) + "." + ">" + strings.Repeat("+", 75) + "." + ">" + strings.Repeat("+", 10) + ".\n"
	if r.stdout != want {
		t.Errorf("rewrite = %q; want %q", r.stdout, want)
	}

	// The rewrite is itself a program with the same behaviour.
	flat := filepath.Join(t.TempDir(), "flat.bf")
	if err := os.WriteFile(flat, []byte(r.stdout), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := runCLI(t, "", "-p", flat); !strings.HasPrefix(r.stdout, "OK\n\n") {
		t.Errorf("running the rewrite: %q", r.stdout)
	}
}

func TestRewriteLong(t *testing.T) {
	r := runCLI(t, "", "-rewrite", "-long", "-p", sample(t, "echo.bf"))
	if want := "IN\nJUMP\n  OUT\n  IN\nBACK\n"; r.stdout != want {
		t.Errorf("rewrite -long = %q; want %q", r.stdout, want)
	}
}

func TestTranslateAndRunBitmap(t *testing.T) {
	for _, format := range []string{"bmp", "png"} {
		t.Run(format, func(t *testing.T) {
			r := runCLI(t, "", "-translate", "-format", format, "-p", sample(t, "drain.bf"))
			if r.code != errs.ExitOK {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			img := filepath.Join(t.TempDir(), "drain."+format)
			if err := os.WriteFile(img, []byte(r.stdout), 0o644); err != nil {
				t.Fatal(err)
			}
			r = runCLI(t, "", "-p", img)
			if r.code != errs.ExitOK {
				t.Fatalf("running image: exit %d: %s", r.code, r.stderr)
			}
			if !strings.HasPrefix(r.stdout, "A\n") || !strings.Contains(r.stdout, "C1: 65\n") {
				t.Errorf("image run = %q", r.stdout)
			}
		})
	}
}

func TestCompileAndRunObject(t *testing.T) {
	obj := filepath.Join(t.TempDir(), "ok.bfo")
	if r := runCLI(t, "", "-compile", obj, "-p", sample(t, "ok.bf")); r.code != errs.ExitOK {
		t.Fatalf("compile: exit %d: %s", r.code, r.stderr)
	}
	r := runCLI(t, "", "-p", obj)
	if r.code != errs.ExitOK {
		t.Fatalf("run object: exit %d: %s", r.code, r.stderr)
	}
	if !strings.HasPrefix(r.stdout, "OK\n\n") {
		t.Errorf("object run = %q", r.stdout)
	}
}

func TestToC(t *testing.T) {
	prog := sample(t, "hello.bf")
	r := runCLI(t, "", "-to-c", "-p", prog)
	if r.code != errs.ExitOK {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	src, err := os.ReadFile(strings.TrimSuffix(prog, ".bf") + ".c")
	if err != nil {
		t.Fatalf("no C file: %v", err)
	}
	for _, want := range []string{"#include <stdio.h>", "putchar(tape[ptr]);", "int main(void)"} {
		if !strings.Contains(string(src), want) {
			t.Errorf("C source missing %q", want)
		}
	}
}

func TestTrace(t *testing.T) {
	prog := sample(t, "ok.bf")
	r := runCLI(t, "", "-trace", "-p", prog)
	if r.code != errs.ExitOK {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	data, err := os.ReadFile(strings.TrimSuffix(prog, ".bf") + ".log")
	if err != nil {
		t.Fatalf("no trace: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if lines[0] != "1 INCR depth=1 ptr=0 cell=1" {
		t.Errorf("first trace line = %q", lines[0])
	}
	if !strings.Contains(string(data), " OUT depth=2 ptr=0 cell=79\n") {
		t.Errorf("trace has no output inside the function call")
	}
}

func TestRuntimeErrorExitCodes(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		src  string
		code int
	}{
		{"<", errs.ExitTapeBound},
		{"-", errs.ExitValueBound},
		{"$a=+\n$a=-", errs.ExitDuplicateDefinition},
		{"]", errs.ExitUnbalancedLoop},
		{"§f=f\nf", errs.ExitCallDepth},
	}
	for i, tt := range tests {
		path := filepath.Join(dir, strings.Repeat("x", i+1)+".bf")
		if err := os.WriteFile(path, []byte(tt.src), 0o644); err != nil {
			t.Fatal(err)
		}
		if r := runCLI(t, "", "-p", path); r.code != tt.code {
			t.Errorf("%q: exit %d; want %d (%s)", tt.src, r.code, tt.code, r.stderr)
		}
	}
	if r := runCLI(t, "", "-p", filepath.Join(dir, "missing.bf")); r.code != errs.ExitIO {
		t.Errorf("missing file: exit %d", r.code)
	}
}

func TestMetricsHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	if r := runCLI(t, "", "-metrics-db", db, "-p", sample(t, "hello.bf")); r.code != errs.ExitOK {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	runCLI(t, "", "-metrics-db", db, "-p", sample(t, "unbalanced.bf"))

	r := runCLI(t, "", "-metrics-db", db, "-history", "5")
	if r.code != errs.ExitOK {
		t.Fatalf("history: exit %d: %s", r.code, r.stderr)
	}
	if !strings.Contains(r.stdout, "hello.bf") || !strings.Contains(r.stdout, " ok ") {
		t.Errorf("history = %q", r.stdout)
	}
}

func TestConfigFile(t *testing.T) {
	prog := sample(t, "hello.bf")
	cfg := filepath.Join(filepath.Dir(prog), "gobf.toml")
	if err := os.WriteFile(cfg, []byte("[tape]\nsize = 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := runCLI(t, "", "-p", prog); r.code != errs.ExitTapeBound {
		t.Errorf("4-cell tape: exit %d; want %d", r.code, errs.ExitTapeBound)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestFlushReportsWriteError(t *testing.T) {
	w := bufio.NewWriter(failingWriter{})
	w.WriteString("1 INCR depth=1 ptr=0 cell=1\n")
	if err := flush(w, nil); err == nil || err.Error() != "disk full" {
		t.Errorf("flush = %v; want the write error", err)
	}

	runErr := errs.ErrTapeBound
	w = bufio.NewWriter(failingWriter{})
	w.WriteString("x")
	if err := flush(w, runErr); err != runErr {
		t.Errorf("flush = %v; want the run error to win", err)
	}

	w = bufio.NewWriter(&bytes.Buffer{})
	if err := flush(w, nil); err != nil {
		t.Errorf("flush of a healthy writer = %v", err)
	}
}
