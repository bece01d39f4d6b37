package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Giulio2002/sdbx"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

var (
	dumpAll    bool
	dumpOutput string
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().BoolVarP(&dumpAll, "all", "a", false, "Dump every named database as well as the main tree")
	cmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "Write to file (atomic) instead of stdout")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <env> [db...]",
		Short: "Dump records as hex-encoded JSON lines",
		Long: `The dump command writes records as one JSON object per line. Each
database section starts with a header line carrying the database name
and flags; record lines carry hex-encoded key and value. The output of
dump is what load reads back.

Without database names the main tree is dumped. Main-tree records that
anchor named databases are skipped; dump those databases by name or
with --all.

Example:
  sdbx dump ./data > backup.ndjson
  sdbx dump ./data accounts --output accounts.ndjson
  sdbx dump ./data --all --output backup.ndjson`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

// dumpHeader starts a database section in a dump stream. The main tree
// uses the empty name.
type dumpHeader struct {
	Database string `json:"database"`
	Flags    uint   `json:"flags"`
	Entries  uint64 `json:"entries"`
}

// dumpRecord is one key-value pair, hex encoded.
type dumpRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func runDump(args []string) error {
	env, err := openEnv(args[0], true)
	if err != nil {
		return err
	}
	defer env.Close()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	err = env.View(func(txn *sdbx.Txn) error {
		names := args[1:]
		dumpMain := len(names) == 0 || dumpAll
		sub, err := txn.ListDBI()
		if err != nil {
			return err
		}
		if dumpAll {
			names = sub
		}
		if dumpMain {
			skip := make(map[string]bool, len(sub))
			for _, name := range sub {
				skip[name] = true
			}
			if err := dumpDatabase(txn, "", enc, skip); err != nil {
				return err
			}
		}
		for _, name := range names {
			if err := dumpDatabase(txn, name, enc, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if dumpOutput == "" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	if err := atomic.WriteFile(dumpOutput, bytes.NewReader(buf.Bytes())); err != nil {
		return err
	}
	if err := syncDir(filepath.Dir(dumpOutput)); err != nil {
		return err
	}
	printVerbose("Wrote %d bytes to %s\n", buf.Len(), dumpOutput)
	return nil
}

// dumpDatabase writes one database section. Keys present in skip are
// left out.
func dumpDatabase(txn *sdbx.Txn, name string, enc *json.Encoder, skip map[string]bool) error {
	db, err := txn.OpenDBI(name, 0)
	if err != nil {
		return err
	}
	defer db.Close()

	flags, err := db.Flags(txn)
	if err != nil {
		return err
	}
	st, err := db.Stat(txn)
	if err != nil {
		return err
	}
	entries := st.Entries - uint64(len(skip))
	if err := enc.Encode(dumpHeader{Database: name, Flags: flags, Entries: entries}); err != nil {
		return err
	}
	return db.RunCursor(txn, func(cur *sdbx.Cursor) error {
		for k, v, err := cur.First(); ; k, v, err = cur.Next() {
			if err != nil {
				if sdbx.IsNotFound(err) {
					return nil
				}
				return err
			}
			if skip[string(k)] {
				continue
			}
			rec := dumpRecord{Key: hex.EncodeToString(k), Value: hex.EncodeToString(v)}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
	})
}
