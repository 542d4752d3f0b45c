package job

import "testing"

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "main.py", false},
		{"dashes and underscores", "my_file-2.cpp", false},
		{"empty", "", true},
		{"parent traversal", "../x", true},
		{"absolute", "/abs", true},
		{"space", "a b.py", true},
		{"slash inside", "dir/main.py", true},
		{"hidden traversal", "a..b", true},
		{"unicode", "mainé.py", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseLanguage(t *testing.T) {
	for _, lang := range Languages() {
		got, err := ParseLanguage(string(lang))
		if err != nil || got != lang {
			t.Errorf("ParseLanguage(%q) = %q, %v", lang, got, err)
		}
	}

	if _, err := ParseLanguage("cobol"); err == nil {
		t.Error("ParseLanguage(cobol) should fail")
	}
	if _, err := ParseLanguage(""); err == nil {
		t.Error("ParseLanguage(empty) should fail")
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusFailed, true},
		{StatusQueued, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusQueued, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusCompleted, false},
		{StatusFailed, StatusProcessing, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusQueued.Terminal() || StatusProcessing.Terminal() {
		t.Error("queued/processing must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed/failed must be terminal")
	}
}

func TestDefaultFilename(t *testing.T) {
	want := map[Language]string{
		LangPython:     "main.py",
		LangJavaScript: "main.js",
		LangC:          "main.c",
		LangCPP:        "main.cpp",
		LangRust:       "main.rs",
	}
	for lang, name := range want {
		if got := lang.DefaultFilename(); got != name {
			t.Errorf("%s DefaultFilename() = %q, want %q", lang, got, name)
		}
	}
}
