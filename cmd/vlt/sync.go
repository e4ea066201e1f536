package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/vaultlabs/vlt/internal/delta"
	"github.com/vaultlabs/vlt/internal/syncdaemon"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

func runSync(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("sync requires a subcommand: enqueue | retry | status")
	}
	switch args[0] {
	case "enqueue":
		return runSyncEnqueue(args[1:], false)
	case "retry":
		return runSyncEnqueue(args[1:], true)
	case "status":
		return runSyncStatus(args[1:])
	default:
		return fmt.Errorf("unknown sync subcommand %q", args[0])
	}
}

// runSyncEnqueue handles both "enqueue" and "retry": the daemon's own
// /sync/retry route is just a relabeled enqueue (see syncdaemon's
// handleRetry doc comment). The direct fallback queues the same change
// either way, at high priority for a retry and normal priority otherwise.
func runSyncEnqueue(args []string, retry bool) error {
	fs := flag.NewFlagSet("sync enqueue", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("requires <path>")
	}
	path := fs.Arg(0)

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Store.Close()

	ctx := context.Background()
	client := syncdaemon.NewClient(a.DaemonBase)
	if client.Healthy(ctx) {
		if retry {
			err = client.Retry(ctx, a.Config.Project.ID, path)
		} else {
			err = client.Enqueue(ctx, a.Config.Project.ID, path)
		}
		if err != nil {
			return err
		}
		fmt.Println("queued via daemon:", path)
		return nil
	}

	known, err := lookupKnownHash(ctx, a, path)
	if err != nil {
		return err
	}
	change, err := delta.DetectFileChanges(path, known)
	if err != nil {
		return err
	}
	if change.Kind == delta.Unchanged {
		fmt.Println("unchanged:", path)
		return nil
	}
	priority := vaultmodel.PriorityNormal
	if retry {
		priority = vaultmodel.PriorityHigh
	}
	if err := a.Delta.QueueFileChange(ctx, path, change, priority); err != nil {
		return err
	}
	fmt.Println("queued directly (daemon unavailable):", path)
	return nil
}

func runSyncStatus(args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Store.Close()

	ctx := context.Background()
	client := syncdaemon.NewClient(a.DaemonBase)
	if client.Healthy(ctx) {
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("daemon: pending=%d succeeded=%d failed=%d\n", st.Pending, st.Succeeded, st.Failed)
		return nil
	}

	entries, err := a.Store.QueuedEntries(ctx, a.Config.Project.ID)
	if err != nil {
		return err
	}
	fmt.Printf("daemon unavailable; %d entries queued locally\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s\t%s\tpriority=%d\tstatus=%s\n", e.FilePath, e.Kind, e.Priority, e.Status)
	}
	return nil
}

func lookupKnownHash(ctx context.Context, a *app, path string) (*string, error) {
	chunks, err := a.Store.GetChunksByFile(ctx, a.Config.Project.ID, path)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	hash := chunks[0].FileHash
	return &hash, nil
}
