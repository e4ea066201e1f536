package codegraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

func TestModuleQualifiedName(t *testing.T) {
	require.Equal(t, "src.auth.login", ModuleQualifiedName("src/auth/login.py"))
	require.Equal(t, "main", ModuleQualifiedName("main.go"))
}

func TestBuild_ClassAndMethodQualifiedNames(t *testing.T) {
	files := []ParsedFile{
		{
			Path: "src/auth.py",
			Declarations: []Declaration{
				{Kind: vaultmodel.CodeNodeClass, Name: "AuthService", Line: 1},
				{Kind: vaultmodel.CodeNodeMethod, Name: "login", EnclosingClass: "AuthService", Signature: "(self, user)", Line: 5},
			},
		},
	}
	nodes, _ := Build("proj-1", files)
	require.Len(t, nodes, 2)
	require.Equal(t, "src.auth.AuthService", nodes[0].QualifiedID)
	require.Equal(t, "src.auth.AuthService.login", nodes[1].QualifiedID)
	require.NotNil(t, nodes[1].Signature)
	require.Equal(t, "(self, user)", *nodes[1].Signature)
}

func TestBuild_ImportsCallsInherits(t *testing.T) {
	files := []ParsedFile{
		{
			Path:     "src/service.py",
			Imports:  []Import{{Target: "src.auth", Line: 1}},
			Calls:    []Call{{From: "src.service.run", Target: "src.auth.login", Line: 10}},
			Inherits: []Inherit{{From: "src.service.Worker", Target: "src.base.BaseWorker", Line: 3}},
		},
	}
	_, edges := Build("proj-1", files)
	require.Len(t, edges, 3)

	var kinds []vaultmodel.EdgeKind
	for _, e := range edges {
		kinds = append(kinds, e.Kind)
	}
	require.Contains(t, kinds, vaultmodel.EdgeImports)
	require.Contains(t, kinds, vaultmodel.EdgeCalls)
	require.Contains(t, kinds, vaultmodel.EdgeInherits)
}

func TestBuild_CallWithNoFromDefaultsToModule(t *testing.T) {
	files := []ParsedFile{
		{Path: "main.go", Calls: []Call{{Target: "fmt.Println", Line: 4}}},
	}
	_, edges := Build("proj-1", files)
	require.Len(t, edges, 1)
	require.Equal(t, "main", edges[0].SourceID)
}
