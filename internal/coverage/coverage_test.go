package coverage

import (
	"testing"

	"github.com/cwbudde/tsapigraph/internal/graph"
	"github.com/cwbudde/tsapigraph/internal/usage"
)

func sampleIndex() graph.ApiIndex {
	return graph.ApiIndex{
		Modules: []graph.ModuleInfo{
			{
				Path: "example.com/widgets",
				Functions: []graph.FunctionInfo{
					{Name: "DoThing"},
					{Name: "DoOldThing", Deprecated: true},
				},
				Classes: []graph.ClassInfo{
					{
						Name:        "Widget",
						Constructor: &graph.ConstructorInfo{},
						Methods:     []graph.MethodInfo{{Name: "Spin"}},
					},
				},
			},
		},
	}
}

func TestFormatSeparatesCoveredAndUncovered(t *testing.T) {
	idx := sampleIndex()
	u := &usage.UsageIndex{Calls: map[string][]usage.CallSite{
		"DoThing": {{Entity: "DoThing", File: "sample.go", Line: 3}},
	}}

	report := Format(idx, u)

	if !contains(report.Covered, "DoThing") {
		t.Errorf("expected DoThing covered, got %+v", report.Covered)
	}
	if !contains(report.Uncovered, "NewWidget") {
		t.Errorf("expected NewWidget uncovered, got %+v", report.Uncovered)
	}
	if contains(report.Uncovered, "DoOldThing") {
		t.Errorf("deprecated function should be excluded, got %+v", report.Uncovered)
	}
	if contains(report.Covered, "DoOldThing") {
		t.Errorf("deprecated function should be excluded, got %+v", report.Covered)
	}
}

func TestFormatPercentage(t *testing.T) {
	idx := sampleIndex()
	u := &usage.UsageIndex{Calls: map[string][]usage.CallSite{
		"DoThing":     {{Entity: "DoThing"}},
		"NewWidget":   {{Entity: "NewWidget"}},
		"Widget.Spin": {{Entity: "Widget.Spin"}},
	}}

	report := Format(idx, u)
	if report.Percentage != 100.0 {
		t.Errorf("Percentage = %v, want 100: %+v", report.Percentage, report)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
