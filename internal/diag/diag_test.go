package diag

import "testing"

func TestSummarizeGroupsByCode(t *testing.T) {
	log := NewLog()
	log.AddWarning(CodeTypeTraverse, "first")
	log.AddWarning(CodeTypeTraverse, "second")
	log.AddWarning(CodeDepExtract, "third")

	summary := log.Summarize()
	if len(summary) != 2 {
		t.Fatalf("expected 2 grouped entries, got %d: %+v", len(summary), summary)
	}

	counts := map[Code]string{}
	for _, m := range summary {
		counts[m.Code] = m.Text
	}
	if counts[CodeTypeTraverse] != "2 occurrence(s)" {
		t.Errorf("CodeTypeTraverse summary = %q", counts[CodeTypeTraverse])
	}
	if counts[CodeDepExtract] != "1 occurrence(s)" {
		t.Errorf("CodeDepExtract summary = %q", counts[CodeDepExtract])
	}
}

func TestSummarizeGroupsUnresolvedByPackage(t *testing.T) {
	log := NewLog()
	log.AddUnresolvedDependency("example.com/foo", "Widget")
	log.AddUnresolvedDependency("example.com/foo", "Gadget")
	log.AddUnresolvedDependency("example.com/bar", "Thing")

	summary := log.Summarize()

	var fooMsg, barMsg *Msg
	for i := range summary {
		switch summary[i].Package {
		case "example.com/foo":
			fooMsg = &summary[i]
		case "example.com/bar":
			barMsg = &summary[i]
		}
	}
	if fooMsg == nil || barMsg == nil {
		t.Fatalf("expected per-package entries, got %+v", summary)
	}
	if fooMsg.Text != `2 unresolved type(s) in package "example.com/foo": [Gadget Widget]` {
		t.Errorf("unexpected foo summary text: %q", fooMsg.Text)
	}
}

func TestMsgsReturnsDefensiveCopy(t *testing.T) {
	log := NewLog()
	log.AddInfo("hello")

	msgs := log.Msgs()
	msgs[0].Text = "mutated"

	if log.Msgs()[0].Text != "hello" {
		t.Fatalf("Msgs() copy was not defensive: mutation leaked into Log")
	}
}
