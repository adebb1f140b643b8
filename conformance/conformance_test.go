package conformance

import (
	"testing"

	"ember/console"
	"ember/console/nativecrypto"
)

func TestLoadAllTests(t *testing.T) {
	tests, err := LoadAllTests()
	if err != nil {
		t.Fatalf("LoadAllTests: %v", err)
	}
	if len(tests) == 0 {
		t.Fatalf("expected at least one loaded test")
	}
}

// TestConformance runs every fixture except crypto_natives.yaml (which
// needs nativecrypto registered — see TestConformanceWithNativeFunctions)
// through a bare Runner, nested as file/case subtests the way a failing
// test name points straight at its fixture.
func TestConformance(t *testing.T) {
	tests, err := LoadAllTests()
	if err != nil {
		t.Fatalf("LoadAllTests: %v", err)
	}

	runner := NewRunner()
	var results []TestResult
	for _, test := range tests {
		if test.File == "crypto_natives.yaml" {
			continue
		}
		t.Run(test.File+"/"+test.Test.Name, func(t *testing.T) {
			result := runner.Run(test)
			results = append(results, result)
			switch {
			case result.Skipped:
				t.Skip(result.SkipReason)
			case !result.Passed:
				t.Fatalf("%v", result.Error)
			}
		})
	}
	t.Logf("%s", FormatStats(ComputeStats(results)))
}

func TestConformanceWithNativeFunctions(t *testing.T) {
	tests, err := LoadAllTests()
	if err != nil {
		t.Fatalf("LoadAllTests: %v", err)
	}

	runner := NewRunnerWithFactory(func() *console.VM {
		c := console.New(console.Config{EnableExceptions: true, EnableTuples: true})
		nativecrypto.Register(c)
		return c
	})

	for _, test := range tests {
		if test.File != "crypto_natives.yaml" {
			continue
		}
		t.Run(test.File+"/"+test.Test.Name, func(t *testing.T) {
			result := runner.Run(test)
			switch {
			case result.Skipped:
				t.Skip(result.SkipReason)
			case !result.Passed:
				t.Fatalf("%v", result.Error)
			}
		})
	}
}

func BenchmarkLoadAllTests(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := LoadAllTests(); err != nil {
			b.Fatalf("LoadAllTests: %v", err)
		}
	}
}
