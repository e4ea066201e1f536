package ctags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

func TestParseTagLine_Function(t *testing.T) {
	line := `authenticate_user	src/auth.py	/^def authenticate_user(username, password):$/;"	f	line:42	signature:(username, password)`
	sym, ok := parseTagLine(line)
	require.True(t, ok)
	require.Equal(t, "authenticate_user", sym.Name)
	require.Equal(t, "src/auth.py", sym.File)
	require.Equal(t, 42, sym.Line)
	require.Equal(t, "function", sym.Kind)
	require.NotNil(t, sym.Signature)
	require.Equal(t, "(username, password)", *sym.Signature)
}

func TestParseTagLine_MethodWithClassScope(t *testing.T) {
	line := `method_name	src/models.py	/^    def method_name(self):$/;"	m	line:100	class:MyClass`
	sym, ok := parseTagLine(line)
	require.True(t, ok)
	require.Equal(t, "method", sym.Kind)
	require.NotNil(t, sym.Scope)
	require.Equal(t, "MyClass", *sym.Scope)
	require.Equal(t, 100, sym.Line)
}

func TestParseTagLine_InvalidOrComment(t *testing.T) {
	_, ok := parseTagLine("invalid")
	require.False(t, ok)

	_, ok = parseTagLine(`!_TAG_FILE_FORMAT	2`)
	require.False(t, ok)
}

func TestParse_MultipleLines(t *testing.T) {
	input := strings.Join([]string{
		`!_TAG_FILE_FORMAT	2`,
		`UserService	src/user.py	/^class UserService:$/;"	c	line:10`,
		`authenticate	src/auth.py	/^def authenticate():$/;"	f	line:20`,
	}, "\n")
	syms, err := Parse(strings.NewReader(input), "proj-1")
	require.NoError(t, err)
	require.Len(t, syms, 2)
	require.Equal(t, "proj-1", syms[0].ProjectID)
}

func TestLookupDefinition(t *testing.T) {
	symbols := []vaultmodel.SymbolDefinition{
		{Name: "UserService", File: "src/user.py", Line: 10, Kind: "class"},
		{Name: "authenticate", File: "src/auth.py", Line: 20, Kind: "function"},
	}
	result, ok := LookupDefinition("UserService", symbols)
	require.True(t, ok)
	require.Equal(t, "src/user.py", result.File)

	_, ok = LookupDefinition("NonExistent", symbols)
	require.False(t, ok)
}

func TestLookupAllDefinitions(t *testing.T) {
	symbols := []vaultmodel.SymbolDefinition{
		{Name: "helper", File: "src/utils.py"},
		{Name: "helper", File: "src/common.py"},
		{Name: "other", File: "src/other.py"},
	}
	out := LookupAllDefinitions("helper", symbols)
	require.Len(t, out, 2)
}
