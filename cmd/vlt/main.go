// Command vlt is the Vault's command-line front-end: a thin, contract-only
// layer over the store, the Oracle orchestrator, and the sync daemon,
// following the root tool's plain flag-based dispatch (no subcommand
// framework) rather than a cobra/urfave-cli dependency.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vaultlabs/vlt/internal/obslog"
)

const usageText = `vlt: persistent cognitive memory and code intelligence for agents.

Usage:
  vlt ask [-sources code,vault,threads] [-explain] [-repomap] [-user <id>] "<question>"
  vlt thread push [-author <name>] <thread_id> "<content>"
  vlt thread read <thread_id>
  vlt thread seek [-limit <n>] "<concept>"
  vlt thread list
  vlt overview
  vlt config set-key [-server <url>] <token>
  vlt sync enqueue <path>
  vlt sync retry <path>
  vlt sync status
  vlt daemon start
  vlt daemon stop
  vlt daemon status
  vlt daemon restart

Flags must come before the positional arguments.
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	_ = godotenv.Load()
	obslog.Init("", os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "ask":
		err = runAsk(os.Args[2:])
	case "thread":
		err = runThread(os.Args[2:])
	case "overview":
		err = runOverview(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "sync":
		err = runSync(os.Args[2:])
	case "daemon":
		err = runDaemon(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return
	default:
		fmt.Fprintf(os.Stderr, "vlt: unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "vlt: %v\n", err)
		os.Exit(1)
	}
}
