package main

import (
	"flag"
	"fmt"

	"github.com/vaultlabs/vlt/internal/config"
)

func runConfig(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("config requires a subcommand: set-key")
	}
	switch args[0] {
	case "set-key":
		return runConfigSetKey(args[1:])
	default:
		return fmt.Errorf("unknown config subcommand %q", args[0])
	}
}

func runConfigSetKey(args []string) error {
	fs := flag.NewFlagSet("config set-key", flag.ExitOnError)
	server := fs.String("server", "", "backend server URL")
	fs.StringVar(server, "s", "", "backend server URL (shorthand)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("config set-key requires <token>")
	}
	token := fs.Arg(0)

	path, err := config.SetKey(token, *server)
	if err != nil {
		return err
	}
	fmt.Printf("sync token saved to %s\n", path)
	if *server != "" {
		fmt.Printf("server URL set to %s\n", *server)
	}
	return nil
}
