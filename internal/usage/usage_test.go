package usage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/graph"
)

func writeSample(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing sample file: %v", err)
	}
}

func TestAnalyzeFindsCallSitesAndUncalled(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "main.go", `package main

import "example.com/widgets"

func main() {
	w := widgets.NewWidget()
	w.Spin()
}
`)

	idx := graph.ApiIndex{Modules: []graph.ModuleInfo{
		{
			Path: "example.com/widgets",
			Classes: []graph.ClassInfo{
				{
					Name:        "Widget",
					Constructor: &graph.ConstructorInfo{},
					Methods: []graph.MethodInfo{
						{Name: "Spin"},
						{Name: "Halt"},
					},
				},
			},
		},
	}}

	log := diag.NewLog()
	result, err := Analyze(context.Background(), dir, idx, log)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(result.Calls["NewWidget"]) != 1 {
		t.Errorf("expected 1 call site for NewWidget, got %+v", result.Calls["NewWidget"])
	}
	if len(result.Calls["Widget.Spin"]) != 1 {
		t.Errorf("expected 1 call site for Widget.Spin, got %+v", result.Calls["Widget.Spin"])
	}
	if !contains(result.Uncalled, "Widget.Halt") {
		t.Errorf("expected Widget.Halt uncalled, got %+v", result.Uncalled)
	}
}

// TestAnalyzeAttributesCallViaMethodReturnTypeInference covers a call
// chain reaching a method through another method's *inferred* return
// type (StorageService.GetBlobClient() -> BlobClient), never by matching
// "Upload" against every class that happens to declare it.
func TestAnalyzeAttributesCallViaMethodReturnTypeInference(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "main.go", `package main

import "example.com/storage"

func main() {
	svc := storage.NewStorageService()
	client := svc.GetBlobClient()
	client.Upload()
}
`)

	idx := graph.ApiIndex{Modules: []graph.ModuleInfo{
		{
			Path: "example.com/storage",
			Classes: []graph.ClassInfo{
				{
					Name:        "StorageService",
					Constructor: &graph.ConstructorInfo{},
					Methods: []graph.MethodInfo{
						{Name: "GetBlobClient", ReturnType: "*BlobClient"},
					},
				},
				{
					Name:        "BlobClient",
					Constructor: &graph.ConstructorInfo{},
					Methods: []graph.MethodInfo{
						{Name: "Upload"},
						{Name: "Download"},
					},
				},
			},
		},
	}}

	log := diag.NewLog()
	result, err := Analyze(context.Background(), dir, idx, log)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(result.Calls["BlobClient.Upload"]) != 1 {
		t.Errorf("expected 1 call site for BlobClient.Upload, got %+v", result.Calls["BlobClient.Upload"])
	}
	if !contains(result.Uncalled, "BlobClient.Download") {
		t.Errorf("expected BlobClient.Download uncalled, got %+v", result.Uncalled)
	}
}

func TestAnalyzeToleratesUnparsableFile(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "broken.go", `package main

func main( {
`)

	log := diag.NewLog()
	_, err := Analyze(context.Background(), dir, graph.ApiIndex{}, log)
	if err != nil {
		t.Fatalf("Analyze should tolerate a broken sample file, got error: %v", err)
	}
	if len(log.Msgs()) == 0 {
		t.Errorf("expected a warning to be recorded for the broken file")
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
