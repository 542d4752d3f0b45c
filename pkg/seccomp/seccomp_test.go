package seccomp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultProfileRender(t *testing.T) {
	text := DefaultProfile().Render()

	for _, want := range []string{
		"net none",
		"caps.drop all",
		"noroot",
		"nonewprivs",
		"private",
		"seccomp.drop ",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("profile missing %q:\n%s", want, text)
		}
	}

	for _, syscall := range []string{"ptrace", "mount", "bpf", "kexec_load", "setns"} {
		if !strings.Contains(text, syscall) {
			t.Errorf("drop list missing %q", syscall)
		}
	}
}

func TestRenderStable(t *testing.T) {
	a := DefaultProfile().Render()
	b := DefaultProfile().Render()
	if a != b {
		t.Error("profile rendering must be deterministic")
	}
}

func TestBuilderDirectiveOrder(t *testing.T) {
	text := NewBuilder().
		Directive("net none").
		Directive("noroot").
		DropSyscalls("b_call", "a_call").
		Render()

	netIdx := strings.Index(text, "net none")
	rootIdx := strings.Index(text, "noroot")
	if netIdx < 0 || rootIdx < 0 || netIdx > rootIdx {
		t.Errorf("directives out of order:\n%s", text)
	}

	if !strings.Contains(text, "seccomp.drop a_call,b_call") {
		t.Errorf("drop list not sorted:\n%s", text)
	}
}

func TestEnsureProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "codepad.profile")

	if err := EnsureProfile(path); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "net none") {
		t.Errorf("written profile incomplete:\n%s", data)
	}

	// An operator-supplied profile is never overwritten.
	custom := []byte("# operator profile\nnet none\n")
	if err := os.WriteFile(path, custom, 0644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureProfile(path); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != string(custom) {
		t.Error("EnsureProfile overwrote an existing profile")
	}
}

func TestEnsureProfileEmptyPath(t *testing.T) {
	if err := EnsureProfile(""); err != nil {
		t.Errorf("empty path is a no-op, got %v", err)
	}
}
