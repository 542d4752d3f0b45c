package job

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Language identifies one of the supported execution languages.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangRust       Language = "rust"
)

// Languages returns the closed set of supported languages.
func Languages() []Language {
	return []Language{LangPython, LangJavaScript, LangC, LangCPP, LangRust}
}

// ParseLanguage maps a language tag onto the closed set.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(s)) {
	case LangPython:
		return LangPython, nil
	case LangJavaScript:
		return LangJavaScript, nil
	case LangC:
		return LangC, nil
	case LangCPP:
		return LangCPP, nil
	case LangRust:
		return LangRust, nil
	}
	return "", fmt.Errorf("unsupported language: %q", s)
}

// DefaultFilename returns the canonical source filename for a language.
func (l Language) DefaultFilename() string {
	switch l {
	case LangPython:
		return "main.py"
	case LangJavaScript:
		return "main.js"
	case LangC:
		return "main.c"
	case LangCPP:
		return "main.cpp"
	case LangRust:
		return "main.rs"
	}
	return "main.txt"
}

// Status is the lifecycle state of a job. Transitions are monotone:
// queued -> processing -> completed | failed, with failed also reachable
// directly from queued.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal step.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusProcessing:
		return s == StatusQueued
	case StatusCompleted:
		return s == StatusProcessing
	case StatusFailed:
		return s == StatusQueued || s == StatusProcessing
	}
	return false
}

// Result is the outcome of a finished execution.
type Result struct {
	Success       bool    `json:"success"`
	ExitCode      int     `json:"exit_code"`
	ExecutionTime float64 `json:"execution_time"`
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
}

// Job is the lifecycle record of a single submission.
type Job struct {
	ID          string     `json:"job_id"`
	Code        string     `json:"-"`
	Language    Language   `json:"language"`
	Filename    string     `json:"filename"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *Result    `json:"result,omitempty"`
}

var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateFilename rejects names that could escape the work directory.
// The accepted grammar is a single path segment of [A-Za-z0-9_.-]+ with
// no parent traversal and no leading separator.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("filename is empty")
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("invalid filename: %q", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid filename: %q", name)
	}
	if !filenamePattern.MatchString(name) {
		return fmt.Errorf("invalid filename: %q", name)
	}
	return nil
}
