package conformance

import (
	"fmt"
	"strings"

	"ember/console"
	"ember/value"
)

// TestResult is the outcome of running one TestCase.
type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner drives a fresh console.VM per test case — cases are expected to
// be independent (no cross-case global state), so isolation is cheap and
// removes any test-ordering hazard.
type Runner struct {
	newVM func() *console.VM
}

// NewRunner builds a Runner that constructs a bare console.VM
// (EnableExceptions and EnableTuples set, no native packages registered)
// for every test case.
func NewRunner() *Runner {
	return NewRunnerWithFactory(func() *console.VM {
		return console.New(console.Config{
			EnableExceptions: true,
			EnableTuples:     true,
		})
	})
}

// NewRunnerWithFactory builds a Runner that calls newVM once per test
// case, letting a caller register its own native functions (e.g.
// nativecrypto.Register) before handing the VM back.
func NewRunnerWithFactory(newVM func() *console.VM) *Runner {
	return &Runner{newVM: newVM}
}

// source assembles one script body out of a suite's setup, a case's own
// setup, and the case's code/statement, all run together in a single
// fiber so a setup-declared local is visible to the assertion that
// follows it — this runtime has no persistent global-variable store a
// script can write through, so stitching the statements into one
// compiled block is how setup state reaches the test body.
func (r *Runner) source(test LoadedTest) string {
	var b strings.Builder
	if test.Suite.Setup != nil && test.Suite.Setup.Statement != "" {
		b.WriteString(test.Suite.Setup.Statement)
		b.WriteString("\n")
	}
	if test.Test.Setup != nil && test.Test.Setup.Statement != "" {
		b.WriteString(test.Test.Setup.Statement)
		b.WriteString("\n")
	}
	switch {
	case test.Test.Statement != "":
		b.WriteString(test.Test.Statement)
	case test.Test.Code != "":
		b.WriteString("return ")
		b.WriteString(test.Test.Code)
		b.WriteString(";")
	}
	return b.String()
}

// Run executes one test case to completion and checks its result.
func (r *Runner) Run(test LoadedTest) TestResult {
	if skipped, reason := test.Test.IsSkipped(); skipped {
		return TestResult{Test: test, Skipped: true, SkipReason: reason}
	}
	if test.Test.Code == "" && test.Test.Statement == "" {
		return TestResult{Test: test, Skipped: true, SkipReason: "no code/statement"}
	}

	c := r.newVM()
	name := fmt.Sprintf("%s/%s", test.File, test.Test.Name)
	result, err := c.Exec(name, r.source(test))

	passed, checkErr := r.checkExpectation(c, test.Test, result, err)
	return TestResult{Test: test, Passed: passed, Error: checkErr}
}

// RunAll runs every test in tests in order.
func (r *Runner) RunAll(tests []LoadedTest) []TestResult {
	results := make([]TestResult, len(tests))
	for i, test := range tests {
		results[i] = r.Run(test)
	}
	return results
}

// SummaryStats tallies a batch of TestResults.
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats tallies results into a SummaryStats.
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Skipped:
			stats.Skipped++
		case r.Passed:
			stats.Passed++
		default:
			stats.Failed++
		}
	}
	return stats
}

// FormatStats renders stats the way a conformance run's trailer line reads.
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}

func (r *Runner) checkExpectation(c *console.VM, test TestCase, result value.Value, runErr error) (bool, error) {
	expect := test.Expect

	if expect.Exception {
		if runErr == nil {
			return false, fmt.Errorf("expected an exception, got value %s", c.StringOf(result))
		}
		return true, nil
	}

	if runErr != nil {
		return false, fmt.Errorf("unexpected error: %w", runErr)
	}

	if expect.Value != nil {
		ok, err := valueMatches(c, result, expect.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("expected %v, got %s", expect.Value, c.StringOf(result))
		}
		return true, nil
	}

	if expect.Type != "" {
		got := typeName(result)
		if got != strings.ToLower(expect.Type) {
			return false, fmt.Errorf("expected type %s, got %s", expect.Type, got)
		}
		return true, nil
	}

	return false, fmt.Errorf("no expectation specified")
}

func typeName(v value.Value) string {
	switch v.Type {
	case value.TypeFloat:
		return "float"
	case value.TypeUnsigned:
		return "unsigned"
	case value.TypeString:
		return "string"
	default:
		return "string"
	}
}

// valueMatches compares a YAML-decoded expectation (int, float64, string,
// or bool) against a script result, resolving strings through the VM
// since string Values need StringOf rather than a payload compare.
func valueMatches(c *console.VM, got value.Value, want interface{}) (bool, error) {
	switch w := want.(type) {
	case int:
		return got.Uint() == uint64(w), nil
	case int64:
		return got.Uint() == uint64(w), nil
	case float64:
		if got.Type == value.TypeFloat {
			return got.Float() == w, nil
		}
		return float64(got.Uint()) == w, nil
	case bool:
		truthy := got.Bool(c.StringOf)
		return truthy == w, nil
	case string:
		return c.StringOf(got) == w, nil
	default:
		return false, fmt.Errorf("unsupported expectation value type %T", want)
	}
}
