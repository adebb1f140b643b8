// Package conformance runs YAML-described scripts against a console.VM
// and checks their result against a declared expectation, the same
// suite-of-files shape the teacher's own conformance package uses against
// its MOO evaluator, ported to this runtime's three-type value model
// (string, float, unsigned) and exception-as-value error reporting.
package conformance

// TestSuite represents one YAML test file: a named group of TestCases
// sharing an optional setup/teardown script.
type TestSuite struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Setup       *SetupBlock `yaml:"setup,omitempty"`
	Teardown    *SetupBlock `yaml:"teardown,omitempty"`
	Tests       []TestCase  `yaml:"tests"`
}

// SetupBlock is a statement run before a suite or test case, for state a
// test needs established first (a global assignment, a registered native
// function) that the test's own Code shouldn't have to repeat. A suite's
// Teardown block is parsed but the runner does not run it.
type SetupBlock struct {
	Statement string `yaml:"statement,omitempty"`
}

// TestCase is one script plus its expected outcome.
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        interface{} `yaml:"skip,omitempty"` // bool or string reason
	Code        string      `yaml:"code,omitempty"` // expression, wrapped in "return ... ;"
	Statement   string      `yaml:"statement,omitempty"` // full statement list, run as-is
	Setup       *SetupBlock `yaml:"setup,omitempty"`
	Expect      Expectation `yaml:"expect"`
}

// Expectation describes what a TestCase's script must produce. Exactly
// one of Value, Exception, or Type is normally set; Exception is checked
// first, then Value, then Type.
type Expectation struct {
	Value     interface{} `yaml:"value,omitempty"`     // exact match against Go float64/uint64/string
	Exception bool        `yaml:"exception,omitempty"` // script must throw rather than return
	Type      string      `yaml:"type,omitempty"`      // "string", "float", or "unsigned"
}

// IsSkipped reports whether this case should be skipped, and why.
func (tc *TestCase) IsSkipped() (bool, string) {
	if tc.Skip == nil {
		return false, ""
	}
	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
		return false, ""
	case string:
		return true, v
	default:
		return false, ""
	}
}
