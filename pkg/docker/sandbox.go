package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Runtime describes how code of one language is run.
type Runtime struct {
	Image string
	File  string
	Run   string
}

var runtimes = map[string]Runtime{
	"python":     {Image: "python:3.12-alpine", File: "main.py", Run: "python main.py"},
	"javascript": {Image: "node:20-alpine", File: "main.js", Run: "node main.js"},
	"go":         {Image: "golang:1.24-alpine", File: "main.go", Run: "go run main.go"},
}

// SupportedLanguage reports whether the sandbox can run the language.
func SupportedLanguage(language string) bool {
	_, ok := runtimes[normalizeLanguage(language)]
	return ok
}

func normalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	switch language {
	case "py", "python3":
		return "python"
	case "js", "node":
		return "javascript"
	case "golang":
		return "go"
	}
	return language
}

// Case is one stdin/expected stdout pair.
type Case struct {
	Input    string
	Expected string
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Passed   bool
	Output   string
	Stderr   string
	ExitCode int
	TimedOut bool
	// Truncated is set when the program wrote more than the executor keeps.
	Truncated bool
}

// Report collects the case results of one submission.
type Report struct {
	Language string
	Results  []CaseResult
}

// Passed counts passing cases.
func (r Report) Passed() int {
	passed := 0
	for _, result := range r.Results {
		if result.Passed {
			passed++
		}
	}
	return passed
}

// String renders the report for a grader prompt.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d cases passed (%s)\n", r.Passed(), len(r.Results), r.Language)
	for i, result := range r.Results {
		status := "passed"
		switch {
		case result.TimedOut:
			status = "timed out"
		case result.ExitCode != 0:
			status = fmt.Sprintf("exited with %d", result.ExitCode)
		case !result.Passed:
			status = "wrong output"
		}
		fmt.Fprintf(&b, "case %d: %s", i+1, status)
		if !result.Passed && result.Output != "" {
			fmt.Fprintf(&b, ", got %q", truncate(result.Output, 200))
		}
		if result.Truncated {
			b.WriteString(", output truncated")
		}
		if result.Stderr != "" {
			fmt.Fprintf(&b, ", stderr %q", truncate(result.Stderr, 200))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

// Sandbox runs a submission against test cases, one container per case.
type Sandbox struct {
	executor Executor
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewSandbox wraps an executor.
func NewSandbox(executor Executor, timeout time.Duration, logger zerolog.Logger) *Sandbox {
	return &Sandbox{
		executor: executor,
		timeout:  timeout,
		logger:   logger.With().Str("component", "sandbox").Logger(),
	}
}

// Run executes code once per case with the case input on stdin.
func (s *Sandbox) Run(ctx context.Context, language, code string, cases []Case) (*Report, error) {
	language = normalizeLanguage(language)
	runtime, ok := runtimes[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}

	workspace, err := os.MkdirTemp("", "algogenius-run-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, runtime.File), []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	report := &Report{Language: language, Results: make([]CaseResult, 0, len(cases))}
	for i, tc := range cases {
		result, err := s.executor.Run(ctx, ExecutionRequest{
			Image:           runtime.Image,
			Cmd:             []string{"sh", "-c", `printf '%s' "$CASE_INPUT" | ` + runtime.Run},
			Env:             []string{"CASE_INPUT=" + tc.Input},
			Timeout:         s.timeout,
			Workspace:       workspace,
			NetworkDisabled: true,
		})
		if err != nil && !result.TimedOut {
			return nil, fmt.Errorf("run case %d: %w", i+1, err)
		}

		output := strings.TrimSpace(result.Stdout)
		report.Results = append(report.Results, CaseResult{
			Passed:    !result.TimedOut && result.ExitCode == 0 && sameOutput(output, tc.Expected),
			Output:    output,
			Stderr:    strings.TrimSpace(result.Stderr),
			ExitCode:  result.ExitCode,
			TimedOut:  result.TimedOut,
			Truncated: result.OutputTruncated,
		})
	}

	s.logger.Debug().Str("language", language).Int("passed", report.Passed()).Int("cases", len(cases)).Msg("sandbox run finished")
	return report, nil
}

func sameOutput(got, want string) bool {
	return strings.Join(strings.Fields(got), " ") == strings.Join(strings.Fields(want), " ")
}
