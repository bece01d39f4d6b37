package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Giulio2002/sdbx"
	"github.com/spf13/cobra"
)

var loadDrop bool

func init() {
	cmd := newLoadCmd()
	cmd.Flags().BoolVar(&loadDrop, "drop", false, "Empty each database before loading into it")
	rootCmd.AddCommand(cmd)
}

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <env> [file]",
		Short: "Load records from a dump stream",
		Long: `The load command reads the JSON-lines format written by dump, from a
file or stdin, and writes the records into the environment in a single
transaction. Named databases are created as needed with the flags
recorded in their section headers. A missing environment directory is
created.

Example:
  sdbx load ./restored backup.ndjson
  sdbx dump ./data --all | sdbx load ./restored`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(args)
		},
	}
	return cmd
}

// dumpLine is the decode side of the dump format. A header line carries
// the database name, a record line carries the key.
type dumpLine struct {
	Database *string `json:"database"`
	Flags    uint    `json:"flags"`
	Entries  uint64  `json:"entries"`
	Key      *string `json:"key"`
	Value    *string `json:"value"`
}

func runLoad(args []string) error {
	var in io.Reader = os.Stdin
	if len(args) > 1 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	path := args[0]
	if !noSubdir {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
		}
	}
	env, err := openEnv(path, false)
	if err != nil {
		return err
	}
	defer env.Close()

	// Handles for databases created in the load transaction are closed
	// only after it commits.
	var opened []*sdbx.Database
	defer func() {
		for _, db := range opened {
			db.Close()
		}
	}()

	var total uint64
	err = env.Update(func(txn *sdbx.Txn) error {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		var db *sdbx.Database
		var section string
		var declared, loaded uint64
		endSection := func() {
			if db != nil && declared != loaded {
				printVerbose("Database %q: header declared %d entries, loaded %d\n",
					section, declared, loaded)
			}
		}

		lineno := 0
		for scanner.Scan() {
			lineno++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var l dumpLine
			if err := json.Unmarshal(line, &l); err != nil {
				return fmt.Errorf("line %d: %w", lineno, err)
			}
			switch {
			case l.Database != nil:
				endSection()
				section = *l.Database
				declared, loaded = l.Entries, 0
				// Only the persistent tree flags carry over.
				flags := l.Flags & (sdbx.ReverseKey | sdbx.DupSort | sdbx.IntegerKey |
					sdbx.DupFixed | sdbx.IntegerDup | sdbx.ReverseDup)
				var err error
				if section == "" {
					db, err = txn.OpenRoot(0)
				} else {
					db, err = txn.OpenDBI(section, flags|sdbx.Create)
				}
				if err != nil {
					return fmt.Errorf("line %d: open database %q: %w", lineno, section, err)
				}
				opened = append(opened, db)
				if loadDrop {
					if err := db.Clear(txn); err != nil {
						return err
					}
				}
			case l.Key != nil:
				if db == nil {
					return fmt.Errorf("line %d: record before any database header", lineno)
				}
				key, err := hex.DecodeString(*l.Key)
				if err != nil {
					return fmt.Errorf("line %d: key: %w", lineno, err)
				}
				var val []byte
				if l.Value != nil {
					if val, err = hex.DecodeString(*l.Value); err != nil {
						return fmt.Errorf("line %d: value: %w", lineno, err)
					}
				}
				if err := db.Put(txn, key, val, 0); err != nil {
					return fmt.Errorf("line %d: put: %w", lineno, err)
				}
				loaded++
				total++
			default:
				return fmt.Errorf("line %d: neither database header nor record", lineno)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		endSection()
		return nil
	})
	if err != nil {
		return err
	}

	if err := env.Sync(true); err != nil {
		return err
	}
	printInfo("Loaded %d records into %s\n", total, path)
	return nil
}
