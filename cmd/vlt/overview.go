package main

import (
	"context"
	"fmt"
)

func runOverview(args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Store.Close()

	ctx := context.Background()
	stats, err := a.Store.GetProjectStats(ctx, a.Config.Project.ID)
	if err != nil {
		return err
	}
	threads, err := a.Store.ListThreads(ctx, a.Config.Project.ID)
	if err != nil {
		return err
	}

	fmt.Printf("project: %s (%s)\n", a.Config.Project.Name, a.Config.Project.ID)
	fmt.Printf("  code chunks:  %d\n", stats.ChunkCount)
	fmt.Printf("  graph nodes:  %d\n", stats.NodeCount)
	fmt.Printf("  graph edges:  %d\n", stats.EdgeCount)
	fmt.Printf("  symbols:      %d\n", stats.SymbolCount)
	fmt.Printf("  threads:      %d\n", len(threads))

	if len(threads) > 0 {
		fmt.Println("\nactive threads:")
		shown := 0
		for _, t := range threads {
			if t.Status != "active" {
				continue
			}
			fmt.Printf("  %s\t(created %s)\n", t.ID, t.CreatedAt.Format("2006-01-02"))
			shown++
			if shown >= 10 {
				break
			}
		}
	}
	return nil
}
