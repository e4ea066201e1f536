// Package ctags parses Exuberant/Universal ctags tag files into typed
// SymbolDefinition records. Tag generation itself is out of scope (external
// collaborator); this package only parses the tab-separated tag file
// format into vaultmodel.SymbolDefinition.
package ctags

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

var kindAbbrev = map[string]string{
	"c": "class",
	"f": "function",
	"m": "method",
	"v": "variable",
	"i": "interface",
	"s": "struct",
	"t": "typedef",
	"e": "enumerator",
	"g": "enum",
}

func expandKind(k string) string {
	if full, ok := kindAbbrev[k]; ok {
		return full
	}
	return k
}

// Parse reads a ctags tag file and returns its non-comment entries as
// SymbolDefinitions scoped to project.
func Parse(r io.Reader, project string) ([]vaultmodel.SymbolDefinition, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []vaultmodel.SymbolDefinition
	for scanner.Scan() {
		sym, ok := parseTagLine(scanner.Text())
		if !ok {
			continue
		}
		sym.ProjectID = project
		out = append(out, sym)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseTagLine parses one tab-separated ctags line:
//
//	{tagname}\t{tagfile}\t{ex_cmd};"\t{kind}\t{field:value}...
func parseTagLine(line string) (vaultmodel.SymbolDefinition, bool) {
	if line == "" || strings.HasPrefix(line, "!_TAG_") {
		return vaultmodel.SymbolDefinition{}, false
	}
	fields := strings.Split(line, "\t")
	if len(fields) < 4 {
		return vaultmodel.SymbolDefinition{}, false
	}

	sym := vaultmodel.SymbolDefinition{
		Name: fields[0],
		File: fields[1],
	}

	kindField := strings.TrimSpace(fields[3])
	sym.Kind = expandKind(kindField)

	for _, f := range fields[4:] {
		key, value, found := strings.Cut(f, ":")
		if !found {
			continue
		}
		switch key {
		case "line":
			if n, err := strconv.Atoi(value); err == nil {
				sym.Line = n
			}
		case "class", "struct", "interface":
			v := value
			sym.Scope = &v
		case "signature":
			v := value
			sym.Signature = &v
		case "language":
			sym.Language = value
		}
	}
	return sym, true
}

// LookupDefinition finds the first symbol matching name exactly, or — if
// none does — the first whose qualified form ("scope.name") equals name
// (a qualified lookup such as "MyClass.method_name").
func LookupDefinition(name string, symbols []vaultmodel.SymbolDefinition) (vaultmodel.SymbolDefinition, bool) {
	for _, s := range symbols {
		if s.Name == name {
			return s, true
		}
	}
	for _, s := range symbols {
		if s.Scope != nil && *s.Scope+"."+s.Name == name {
			return s, true
		}
	}
	return vaultmodel.SymbolDefinition{}, false
}

// LookupAllDefinitions returns every symbol named name.
func LookupAllDefinitions(name string, symbols []vaultmodel.SymbolDefinition) []vaultmodel.SymbolDefinition {
	var out []vaultmodel.SymbolDefinition
	for _, s := range symbols {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}
