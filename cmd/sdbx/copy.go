package main

import (
	"github.com/Giulio2002/sdbx"
	"github.com/spf13/cobra"
)

var copyCompact bool

func init() {
	cmd := newCopyCmd()
	cmd.Flags().BoolVar(&copyCompact, "compact", false, "Omit free pages and renumber while copying")
	rootCmd.AddCommand(cmd)
}

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy <env> <destination>",
		Short: "Copy an environment to a new path",
		Long: `The copy command produces a point-in-time copy of the environment at a
new path. The destination must not exist yet. With --compact the copy
is rewritten without free pages, which shrinks long-lived environments.

Example:
  sdbx copy ./data ./backup
  sdbx copy ./data ./backup --compact`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopy(args)
		},
	}
	return cmd
}

func runCopy(args []string) error {
	env, err := openEnv(args[0], true)
	if err != nil {
		return err
	}
	defer env.Close()

	flags := sdbx.CopyDefaults
	if copyCompact {
		flags |= sdbx.CopyCompact
	}
	if err := env.CopyFlags(args[1], flags); err != nil {
		return err
	}
	printInfo("Copied %s to %s\n", args[0], args[1])
	return nil
}
