// Package manifest parses the surface manifest that drives the Export
// Resolver: a JSON or YAML document naming a package's export map, akin
// to a package.json "exports" field plus its legacy
// "types"/"typings"/"module"/"main" fallback fields.
//
// JSON manifests are read with tidwall/gjson (lookup); YAML manifests are
// decoded with goccy/go-yaml, both chosen because they are the
// document-format libraries present in the retrieval pack's wider
// dependency surface. Before gjson sees a JSON manifest, stripJSONC
// removes the whole-line comments and trailing commas a hand-authored
// manifest tends to accumulate, so no strict json.Unmarshal round trip
// is needed.
package manifest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/tidwall/gjson"
)

// maxExportsDepth bounds exports-map recursion so a pathological or
// cyclic-looking manifest cannot hang the resolver.
const maxExportsDepth = 10

// ExportNode is one node of the parsed "exports" tree: either a Leaf
// (a direct package-path target) or an object of Children keyed by
// either export subpaths ("." or "./sub") or condition names. Keys
// preserves declaration order for JSON sources; YAML sources fall back
// to alphabetical order since Go's generic map decoding does not
// preserve it, which is harmless because final leaf ordering is
// re-sorted deterministically downstream anyway.
type ExportNode struct {
	Leaf     string
	Children map[string]*ExportNode
	Keys     []string
}

// Manifest is the parsed surface manifest.
type Manifest struct {
	Name    string
	Version string
	Exports *ExportNode

	// Legacy fields, each mapping to exportPath "." under condition
	// "default" when Exports is nil.
	Types   string
	Typings string
	Module  string
	Main    string
}

var lineCommentRE = regexp.MustCompile(`(?m)^\s*//.*$`)
var trailingCommaRE = regexp.MustCompile(`,(\s*[}\]])`)

// stripJSONC removes // comments that occupy a whole line (a comment
// after a value on the same line is left in place) and trailing commas so a
// hand-authored manifest can use either convention; gjson itself ignores
// unknown top-level noise but does not strip trailing commas, so this
// runs before gjson.Parse.
func stripJSONC(src string) string {
	src = lineCommentRE.ReplaceAllString(src, "")
	src = trailingCommaRE.ReplaceAllString(src, "$1")
	return src
}

func parseJSONNode(v gjson.Result, depth int) (*ExportNode, error) {
	if depth > maxExportsDepth {
		return nil, fmt.Errorf("manifest: exports nesting exceeds depth %d", maxExportsDepth)
	}
	if v.Type == gjson.String {
		return &ExportNode{Leaf: v.String()}, nil
	}
	if !v.IsObject() {
		return nil, fmt.Errorf("manifest: exports leaf must be a string or nested object")
	}
	node := &ExportNode{Children: map[string]*ExportNode{}}
	var parseErr error
	v.ForEach(func(key, val gjson.Result) bool {
		child, err := parseJSONNode(val, depth+1)
		if err != nil {
			parseErr = err
			return false
		}
		node.Children[key.String()] = child
		node.Keys = append(node.Keys, key.String())
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return node, nil
}

// ParseJSON parses a JSON or JSONC surface manifest of the shape:
//
//	{
//	  "name": "example.com/widgets",
//	  "exports": {
//	    ".": { "import": "example.com/widgets/esm", "require": "example.com/widgets/cjs" },
//	    "./sub": "example.com/widgets/sub"
//	  },
//	  "types": "example.com/widgets/types"
//	}
func ParseJSON(src []byte) (*Manifest, error) {
	cleaned := stripJSONC(string(src))
	if !gjson.Valid(cleaned) {
		return nil, fmt.Errorf("manifest: invalid JSON")
	}
	root := gjson.Parse(cleaned)

	m := &Manifest{
		Name:    root.Get("name").String(),
		Version: root.Get("version").String(),
		Types:   firstNonEmpty(root.Get("types"), root.Get("typings")),
		Module:  root.Get("module").String(),
		Main:    root.Get("main").String(),
	}
	if m.Types == "" {
		m.Typings = root.Get("typings").String()
	}

	exports := root.Get("exports")
	if exports.Exists() {
		node, err := parseJSONNode(exports, 0)
		if err != nil {
			return nil, err
		}
		m.Exports = node
		return m, nil
	}
	if m.Types == "" && m.Module == "" && m.Main == "" {
		return nil, fmt.Errorf("manifest: missing \"exports\" and no legacy types/typings/module/main field")
	}
	return m, nil
}

func firstNonEmpty(results ...gjson.Result) string {
	for _, r := range results {
		if r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

// yamlManifest mirrors the top-level manifest fields; Exports holds the
// generic shape goccy/go-yaml decodes an arbitrarily nested exports map
// into.
type yamlManifest struct {
	Name    string      `yaml:"name"`
	Version string      `yaml:"version"`
	Exports interface{} `yaml:"exports"`
	Types   string      `yaml:"types"`
	Typings string      `yaml:"typings"`
	Module  string      `yaml:"module"`
	Main    string       `yaml:"main"`
}

func yamlNode(v interface{}, depth int) (*ExportNode, error) {
	if depth > maxExportsDepth {
		return nil, fmt.Errorf("manifest: exports nesting exceeds depth %d", maxExportsDepth)
	}
	switch t := v.(type) {
	case string:
		return &ExportNode{Leaf: t}, nil
	case map[string]interface{}:
		node := &ExportNode{Children: map[string]*ExportNode{}}
		for k := range t {
			node.Keys = append(node.Keys, k)
		}
		sort.Strings(node.Keys)
		for _, k := range node.Keys {
			child, err := yamlNode(t[k], depth+1)
			if err != nil {
				return nil, err
			}
			node.Children[k] = child
		}
		return node, nil
	default:
		return nil, fmt.Errorf("manifest: exports leaf must be a string or nested mapping")
	}
}

// ParseYAML parses a YAML surface manifest with the same shape as
// ParseJSON.
func ParseYAML(src []byte) (*Manifest, error) {
	var doc yamlManifest
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("manifest: invalid YAML: %w", err)
	}
	m := &Manifest{
		Name:    doc.Name,
		Version: doc.Version,
		Types:   doc.Types,
		Typings: doc.Typings,
		Module:  doc.Module,
		Main:    doc.Main,
	}
	if doc.Exports != nil {
		node, err := yamlNode(doc.Exports, 0)
		if err != nil {
			return nil, err
		}
		m.Exports = node
		return m, nil
	}
	if m.Types == "" && m.Typings == "" && m.Module == "" && m.Main == "" {
		return nil, fmt.Errorf("manifest: missing \"exports\" and no legacy types/typings/module/main field")
	}
	return m, nil
}

// Parse dispatches to ParseJSON or ParseYAML based on path's extension.
func Parse(path string, src []byte) (*Manifest, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return ParseYAML(src)
	}
	return ParseJSON(src)
}
