package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

func runThread(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("thread requires a subcommand: push | read | seek | list")
	}
	switch args[0] {
	case "push":
		return runThreadPush(args[1:])
	case "read":
		return runThreadRead(args[1:])
	case "seek":
		return runThreadSeek(args[1:])
	case "list":
		return runThreadList(args[1:])
	default:
		return fmt.Errorf("unknown thread subcommand %q", args[0])
	}
}

func runThreadPush(args []string) error {
	fs := flag.NewFlagSet("thread push", flag.ExitOnError)
	author := fs.String("author", defaultAuthor(), "node author")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("thread push requires <thread_id> \"<content>\"")
	}
	threadID := fs.Arg(0)
	content := strings.Join(fs.Args()[1:], " ")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Store.Close()

	ctx := context.Background()
	if err := a.Store.EnsureProject(ctx, vaultmodel.Project{ID: a.Config.Project.ID, Name: a.Config.Project.Name, Description: a.Config.Project.Description}); err != nil {
		return err
	}
	if err := a.Store.EnsureThread(ctx, vaultmodel.Thread{ID: threadID, ProjectID: a.Config.Project.ID}); err != nil {
		return err
	}

	node, err := a.Store.AppendNode(ctx, threadID, content, *author, nil)
	if err != nil {
		return err
	}
	fmt.Printf("pushed node %s (seq %d)\n", node.ID, node.SequenceID)
	return nil
}

func runThreadRead(args []string) error {
	fs := flag.NewFlagSet("thread read", flag.ExitOnError)
	force := fs.Bool("force", false, "force full resummarization")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("thread read requires <thread_id>")
	}
	threadID := fs.Arg(0)

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Store.Close()

	summary, err := a.Summarizer.GenerateSummary(context.Background(), threadID, *force)
	if err != nil {
		return err
	}
	fmt.Println(summary)
	return nil
}

func runThreadSeek(args []string) error {
	fs := flag.NewFlagSet("thread seek", flag.ExitOnError)
	limit := fs.Int("limit", 10, "maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("thread seek requires \"<concept>\"")
	}
	query := strings.Join(fs.Args(), " ")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Store.Close()

	retriever := a.Oracle.Retrievers.Thread
	if retriever == nil {
		return fmt.Errorf("thread seek requires a configured embedding API key")
	}
	results, err := retriever.Retrieve(context.Background(), query, *limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no matching threads found")
		return nil
	}
	for _, r := range results {
		fmt.Printf("[%s] (score %.2f)\n%s\n\n", r.SourcePath, r.Score, r.Content)
	}
	return nil
}

func runThreadList(args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Store.Close()

	threads, err := a.Store.ListThreads(context.Background(), a.Config.Project.ID)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Println("no threads yet")
		return nil
	}
	for _, t := range threads {
		fmt.Printf("%s\t%s\t%s\n", t.ID, t.Status, t.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func defaultAuthor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "agent"
}
