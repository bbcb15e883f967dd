// Package diag implements the extraction pipeline's diagnostic sideband:
// a deferred, leveled message buffer plus the fatal error taxonomy for
// timeouts, cancellation and unavailable engines.
//
// A Log collects Msg values through its Add* methods rather than returning
// errors from every call, so deep traversal code can report a warning
// and keep going without threading an error return through every
// function in the Collector/Extractor/Resolver call graphs.
package diag

import (
	"fmt"
	"sort"
)

// Level is the severity of a diagnostic message.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Code is a stable short diagnostic identifier. Fatal conditions do not
// use codes (they abort the run and are reported as plain errors);
// non-fatal ExtractionWarning / UnresolvedDependency diagnostics always
// carry one.
type Code string

const (
	CodeTypeTraverse      Code = "TYPE_TRAVERSE"
	CodeTypeResolve       Code = "TYPE_RESOLVE"
	CodeTypeNodeTraverse  Code = "TYPE_NODE_TRAVERSE"
	CodeDepExtract        Code = "DEP_EXTRACT"
	CodeDepMemberTraverse Code = "DEP_MEMBER_TRAVERSE"
	CodeDepTypeTraverse   Code = "DEP_TYPE_TRAVERSE"
	CodeUnresolvedDep     Code = "UNRESOLVED_DEPENDENCY"
)

// Msg is one diagnostic entry. TypeName is set only when the diagnostic
// concerns a specific named type.
type Msg struct {
	Code     Code   `json:"code,omitempty"`
	Level    Level  `json:"level"`
	Text     string `json:"message"`
	TypeName string `json:"typeName,omitempty"`
	Package  string `json:"package,omitempty"`
}

func (m Msg) String() string {
	if m.TypeName != "" {
		return fmt.Sprintf("%s: %s (%s)", m.Level, m.Text, m.TypeName)
	}
	return fmt.Sprintf("%s: %s", m.Level, m.Text)
}

// Log buffers diagnostics for a single extraction run. It is not safe for
// concurrent use: a run is single-threaded cooperative, and a Log is
// owned by exactly one ExtractionContext.
type Log struct {
	msgs []Msg
}

// NewLog returns an empty diagnostic buffer.
func NewLog() *Log {
	return &Log{}
}

// AddWarning records a non-fatal ExtractionWarning diagnostic.
func (l *Log) AddWarning(code Code, text string) {
	l.msgs = append(l.msgs, Msg{Code: code, Level: LevelWarning, Text: text})
}

// AddWarningForType records a non-fatal diagnostic scoped to a named type.
func (l *Log) AddWarningForType(code Code, typeName, text string) {
	l.msgs = append(l.msgs, Msg{Code: code, Level: LevelWarning, Text: text, TypeName: typeName})
}

// AddUnresolvedDependency records one offending type name for a package
// that could not be resolved during Dependency Resolver expansion.
func (l *Log) AddUnresolvedDependency(pkg, typeName string) {
	l.msgs = append(l.msgs, Msg{
		Code:     CodeUnresolvedDep,
		Level:    LevelWarning,
		Text:     fmt.Sprintf("could not resolve %q from package %q", typeName, pkg),
		TypeName: typeName,
		Package:  pkg,
	})
}

// AddInfo records an informational diagnostic.
func (l *Log) AddInfo(text string) {
	l.msgs = append(l.msgs, Msg{Level: LevelInfo, Text: text})
}

// Msgs returns the raw, insertion-ordered diagnostic list.
func (l *Log) Msgs() []Msg {
	out := make([]Msg, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Summarize groups warnings by code, producing one synthetic Msg per code
// with an occurrence count. Unresolved dependency diagnostics are kept as
// one entry per affected package rather than folded into the code
// summary, since each carries package-specific detail a count alone
// would lose.
func (l *Log) Summarize() []Msg {
	counts := map[Code]int{}
	codeOrder := []Code{}

	unresolvedTypes := map[string][]string{}
	pkgOrder := []string{}

	for _, m := range l.msgs {
		if m.Code == CodeUnresolvedDep {
			if _, seen := unresolvedTypes[m.Package]; !seen {
				pkgOrder = append(pkgOrder, m.Package)
			}
			unresolvedTypes[m.Package] = append(unresolvedTypes[m.Package], m.TypeName)
			continue
		}
		if _, seen := counts[m.Code]; !seen {
			codeOrder = append(codeOrder, m.Code)
		}
		counts[m.Code]++
	}

	var out []Msg
	for _, pkg := range pkgOrder {
		types := unresolvedTypes[pkg]
		sort.Strings(types)
		out = append(out, Msg{
			Code:    CodeUnresolvedDep,
			Level:   LevelWarning,
			Text:    fmt.Sprintf("%d unresolved type(s) in package %q: %v", len(types), pkg, types),
			Package: pkg,
		})
	}
	for _, c := range codeOrder {
		out = append(out, Msg{
			Code:  c,
			Level: LevelWarning,
			Text:  fmt.Sprintf("%d occurrence(s)", counts[c]),
		})
	}
	return out
}
