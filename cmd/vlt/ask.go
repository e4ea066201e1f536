package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/vaultlabs/vlt/internal/oracle"
)

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	sources := fs.String("sources", "", "comma-separated source filter: code,vault,threads")
	explain := fs.Bool("explain", false, "attach diagnostic traces")
	repoMap := fs.Bool("repomap", false, "include a repo-map slice in the context")
	user := fs.String("user", "", "user id to resume a conversation session for")
	maxTokens := fs.Int("max-tokens", 0, "override the context token budget")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("ask requires a question")
	}
	question := strings.Join(fs.Args(), " ")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Store.Close()

	var sourceList []string
	if *sources != "" {
		sourceList = strings.Split(*sources, ",")
	}

	resp, err := a.Oracle.Query(context.Background(), question, oracle.Options{
		Sources:          sourceList,
		Explain:          *explain,
		IncludeRepoMap:   *repoMap,
		MaxContextTokens: *maxTokens,
		UserID:           *user,
		UseConversation:  *user != "",
	})
	if err != nil {
		return err
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range resp.Sources {
			fmt.Printf("  [%s:%s] %s (score %.2f)\n", s.SourceType, s.Method, s.SourcePath, s.Score)
		}
	}
	if *explain && resp.Traces != nil {
		fmt.Printf("\nquery_type=%s model=%s tokens=%d cost_cents=%.4f duration_ms=%d\n",
			resp.QueryType, resp.Model, resp.TokensUsed, resp.CostCents, resp.DurationMs)
	}
	return nil
}
