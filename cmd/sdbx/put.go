package main

import (
	"github.com/Giulio2002/sdbx"
	"github.com/spf13/cobra"
)

var (
	putDB          string
	putHex         bool
	putNoOverwrite bool
)

func init() {
	cmd := newPutCmd()
	cmd.Flags().StringVarP(&putDB, "db", "d", "", "Named database (default: main tree, created if missing)")
	cmd.Flags().BoolVar(&putHex, "hex", false, "Interpret key and value as hex")
	cmd.Flags().BoolVar(&putNoOverwrite, "no-overwrite", false, "Fail if the key already exists")
	rootCmd.AddCommand(cmd)
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <env> <key> <value>",
		Short: "Write a single value",
		Long: `The put command stores one key-value pair in its own transaction.

Example:
  sdbx put ./data mykey myvalue
  sdbx put ./data --db accounts --hex deadbeef cafe`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(args)
		},
	}
	return cmd
}

func runPut(args []string) error {
	key, err := parseBytes(args[1], putHex)
	if err != nil {
		return err
	}
	val, err := parseBytes(args[2], putHex)
	if err != nil {
		return err
	}

	env, err := openEnv(args[0], false)
	if err != nil {
		return err
	}
	defer env.Close()

	var db *sdbx.Database
	err = env.Update(func(txn *sdbx.Txn) error {
		var err error
		if putDB == "" {
			db, err = txn.OpenRoot(0)
		} else {
			db, err = txn.OpenDBI(putDB, sdbx.Create)
		}
		if err != nil {
			return err
		}
		flags := sdbx.Upsert
		if putNoOverwrite {
			flags |= sdbx.NoOverwrite
		}
		return db.Put(txn, key, val, flags)
	})
	if db != nil {
		db.Close()
	}
	if err != nil {
		return err
	}
	printVerbose("Put %s\n", formatBytes(key))
	return nil
}
