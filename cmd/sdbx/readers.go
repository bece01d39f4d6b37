package main

import (
	"github.com/Giulio2002/sdbx"
	"github.com/spf13/cobra"
)

var readersCheck bool

func init() {
	cmd := newReadersCmd()
	cmd.Flags().BoolVar(&readersCheck, "check", false, "Clear reader slots held by dead processes first")
	rootCmd.AddCommand(cmd)
}

func newReadersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readers <env>",
		Short: "List the environment's reader table",
		Long: `The readers command lists the reader slots currently in use, one line
per slot with the owning process, thread and transaction id. With
--check, slots held by processes that no longer exist are cleared
before listing.

Example:
  sdbx readers ./data
  sdbx readers ./data --check`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReaders(args)
		},
	}
	return cmd
}

func runReaders(args []string) error {
	env, err := openEnv(args[0], true)
	if err != nil {
		return err
	}
	defer env.Close()

	if readersCheck {
		cleared, err := env.ReaderCheck()
		if err != nil {
			return err
		}
		if cleared > 0 {
			printInfo("Cleared %d stale reader slot(s)\n", cleared)
		}
	}

	if jsonOut {
		var slots []sdbx.ReaderInfo
		if err := env.ReaderList(func(info sdbx.ReaderInfo) error {
			slots = append(slots, info)
			return nil
		}); err != nil {
			return err
		}
		return printJSON(slots)
	}

	count := 0
	printInfo("%6s %8s %16s %12s\n", "slot", "pid", "thread", "txn")
	err = env.ReaderList(func(info sdbx.ReaderInfo) error {
		count++
		printInfo("%6d %8d %16d %12d\n", info.Slot, info.PID, info.Thread, info.TxnID)
		return nil
	})
	if err != nil {
		return err
	}
	printInfo("%d reader(s) in use\n", count)
	return nil
}
