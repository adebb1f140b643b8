package conformance

import (
	"embed"
	"fmt"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed testdata/*.yaml
var testdataFS embed.FS

// LoadedTest pairs one TestCase with the suite (and file) it came from,
// the way the teacher's LoadedTest lets a runner report suite-level
// setup and file names in failures without threading them separately.
type LoadedTest struct {
	File  string
	Suite TestSuite
	Test  TestCase
}

// LoadAllTests reads every embedded testdata/*.yaml fixture and flattens
// their test cases into one ordered slice. Fixtures are compiled into the
// binary via go:embed rather than walked off disk, so this runs the same
// way regardless of the process's working directory.
func LoadAllTests() ([]LoadedTest, error) {
	entries, err := testdataFS.ReadDir("testdata")
	if err != nil {
		return nil, fmt.Errorf("conformance: reading testdata: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var loaded []LoadedTest
	for _, name := range names {
		suite, err := loadSuiteFile(name)
		if err != nil {
			return nil, fmt.Errorf("conformance: %s: %w", name, err)
		}
		for _, test := range suite.Tests {
			loaded = append(loaded, LoadedTest{File: name, Suite: suite, Test: test})
		}
	}
	return loaded, nil
}

func loadSuiteFile(name string) (TestSuite, error) {
	data, err := testdataFS.ReadFile(path.Join("testdata", name))
	if err != nil {
		return TestSuite{}, err
	}
	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return TestSuite{}, err
	}
	return suite, nil
}
