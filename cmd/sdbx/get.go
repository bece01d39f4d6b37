package main

import (
	"fmt"

	"github.com/Giulio2002/sdbx"
	"github.com/spf13/cobra"
)

var (
	getDB  string
	getHex bool
)

func init() {
	cmd := newGetCmd()
	cmd.Flags().StringVarP(&getDB, "db", "d", "", "Named database (default: main tree)")
	cmd.Flags().BoolVar(&getHex, "hex", false, "Interpret the key as hex")
	rootCmd.AddCommand(cmd)
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <env> <key>",
		Short: "Read a single value",
		Long: `The get command reads one key and prints its value, as text when
printable and hex otherwise.

Example:
  sdbx get ./data mykey
  sdbx get ./data --db accounts --hex deadbeef`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args)
		},
	}
	return cmd
}

func runGet(args []string) error {
	key, err := parseBytes(args[1], getHex)
	if err != nil {
		return err
	}

	env, err := openEnv(args[0], true)
	if err != nil {
		return err
	}
	defer env.Close()

	var val []byte
	err = env.View(func(txn *sdbx.Txn) error {
		db, err := txn.OpenDBI(getDB, 0)
		if err != nil {
			return err
		}
		defer db.Close()
		v, err := db.Get(txn, key)
		if err != nil {
			return err
		}
		// The value points into the map; copy before the transaction ends.
		val = append([]byte(nil), v...)
		return nil
	})
	if sdbx.IsNotFound(err) {
		return fmt.Errorf("key not found: %s", args[1])
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]string{
			"key":   formatBytes(key),
			"value": formatBytes(val),
		})
	}
	printInfo("%s\n", formatBytes(val))
	return nil
}
