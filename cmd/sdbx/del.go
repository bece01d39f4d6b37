package main

import (
	"fmt"

	"github.com/Giulio2002/sdbx"
	"github.com/spf13/cobra"
)

var (
	delDB  string
	delHex bool
)

func init() {
	cmd := newDelCmd()
	cmd.Flags().StringVarP(&delDB, "db", "d", "", "Named database (default: main tree)")
	cmd.Flags().BoolVar(&delHex, "hex", false, "Interpret key and value as hex")
	rootCmd.AddCommand(cmd)
}

func newDelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "del <env> <key> [value]",
		Short: "Delete a key, or one duplicate of it",
		Long: `The del command removes a key in its own transaction. For databases
with sorted duplicates, passing a value removes only that duplicate;
without a value the key is removed with all its duplicates.

Example:
  sdbx del ./data mykey
  sdbx del ./data --db events mykey onevalue`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDel(args)
		},
	}
	return cmd
}

func runDel(args []string) error {
	key, err := parseBytes(args[1], delHex)
	if err != nil {
		return err
	}
	var val []byte
	if len(args) > 2 {
		if val, err = parseBytes(args[2], delHex); err != nil {
			return err
		}
	}

	env, err := openEnv(args[0], false)
	if err != nil {
		return err
	}
	defer env.Close()

	var db *sdbx.Database
	err = env.Update(func(txn *sdbx.Txn) error {
		var err error
		db, err = txn.OpenDBI(delDB, 0)
		if err != nil {
			return err
		}
		return db.Del(txn, key, val)
	})
	if db != nil {
		db.Close()
	}
	if sdbx.IsNotFound(err) {
		return fmt.Errorf("key not found: %s", args[1])
	}
	if err != nil {
		return err
	}
	printVerbose("Deleted %s\n", formatBytes(key))
	return nil
}
