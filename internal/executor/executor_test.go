package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codepad/internal/job"
)

func TestRegistryCoversAllLanguages(t *testing.T) {
	r := NewRegistry(testOptions())

	for _, lang := range job.Languages() {
		e, err := r.Get(lang)
		if err != nil {
			t.Errorf("Get(%s) error = %v", lang, err)
			continue
		}
		if e.Language() != lang {
			t.Errorf("Get(%s).Language() = %s", lang, e.Language())
		}
	}

	if _, err := r.Get(job.Language("fortran")); !errors.Is(err, ErrUnsupportedLang) {
		t.Errorf("Get(fortran) = %v, want ErrUnsupportedLang", err)
	}
}

func TestWriteSourceRejectsBadFilename(t *testing.T) {
	for _, name := range []string{"../x", "/abs", "a b.py", ""} {
		_, _, err := writeSource(Request{JobID: "j", Code: "x", Filename: name})
		if err == nil {
			t.Errorf("writeSource(%q) should fail", name)
		}
	}
}

func TestWriteSourceUsesRecordedFilename(t *testing.T) {
	dir, srcPath, err := writeSource(Request{JobID: "j", Code: "print(1)", Filename: "main.py"})
	if err != nil {
		t.Fatal(err)
	}
	defer removeWorkdir(dir, "j")

	if filepath.Base(srcPath) != "main.py" {
		t.Errorf("source written as %q, want main.py", filepath.Base(srcPath))
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "print(1)" {
		t.Errorf("source content = %q", data)
	}
}

func TestInterpretedCleansWorkdir(t *testing.T) {
	skipWithoutPTY(t)

	// A shell stands in for the interpreter so the test has no runtime
	// dependency beyond /bin/sh.
	e := newInterpreted(job.LangPython, testOptions(), func(path string) []string {
		return []string{"/bin/sh", path}
	})

	res, err := e.Execute(context.Background(), Request{
		JobID:    "cleanup-test",
		Code:     "pwd",
		Filename: "main.py",
		Input:    NewInputQueue(4),
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, stdout=%q", res.ExitCode, res.Stdout)
	}

	workdir := strings.TrimSpace(res.Stdout)
	if workdir == "" {
		t.Fatal("expected the child to print its workdir")
	}
	if _, err := os.Stat(workdir); !os.IsNotExist(err) {
		t.Errorf("workdir %q still exists after Execute", workdir)
	}
}

func TestInterpretedMergedStderr(t *testing.T) {
	skipWithoutPTY(t)

	e := newInterpreted(job.LangPython, testOptions(), func(path string) []string {
		return []string{"/bin/sh", path}
	})

	res, err := e.Execute(context.Background(), Request{
		JobID:    "stderr-test",
		Code:     "echo oops >&2; exit 1",
		Filename: "main.py",
		Input:    NewInputQueue(4),
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	// The PTY merges both streams; Stderr stays reserved for
	// out-of-band failures.
	if !strings.Contains(res.Stdout, "oops") {
		t.Errorf("Stdout = %q, want merged stderr bytes", res.Stdout)
	}
	if res.Stderr != "" {
		t.Errorf("Stderr = %q, want empty", res.Stderr)
	}
	if res.Success || res.ExitCode != 1 {
		t.Errorf("Success=%v ExitCode=%d, want failed exit 1", res.Success, res.ExitCode)
	}
}

func TestSanitizeBuildLog(t *testing.T) {
	dir := "/tmp/codepad-12345"
	buildLog := dir + "/main.c:1:5: error: expected ';'\n" +
		"compilation terminated in " + dir + "\n"

	got := sanitizeBuildLog(buildLog, dir, "main.c")

	if strings.Contains(got, dir) {
		t.Errorf("sanitized log still leaks the workdir: %q", got)
	}
	if !strings.HasPrefix(got, "main.c:1:5") {
		t.Errorf("sanitized log should keep the logical filename: %q", got)
	}
}

func TestCompiledBuildFailure(t *testing.T) {
	skipWithoutPTY(t)

	// "false" exits non-zero without producing a binary, standing in
	// for a failing compiler.
	e := newCompiled(job.LangC, testOptions(), "false", nil)

	res, err := e.Execute(context.Background(), Request{
		JobID:    "build-fail",
		Code:     "int main(){",
		Filename: "main.c",
		Input:    NewInputQueue(4),
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if res.Success {
		t.Error("Success should be false")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if res.Stdout != "" {
		t.Errorf("Stdout = %q, want empty on compile failure", res.Stdout)
	}
}

func TestCompiledMissingCompiler(t *testing.T) {
	skipWithoutPTY(t)

	e := newCompiled(job.LangC, testOptions(), "/nonexistent/gcc", nil)

	_, err := e.Execute(context.Background(), Request{
		JobID:    "no-compiler",
		Code:     "int main(){return 0;}",
		Filename: "main.c",
		Input:    NewInputQueue(4),
	})
	if err == nil {
		t.Fatal("a missing compiler is an out-of-band failure, not a result")
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Errorf("error type = %T, want *ExecutionError", err)
	}
}
