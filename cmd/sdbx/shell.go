package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Giulio2002/sdbx"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newShellCmd())
}

func newShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell <env>",
		Short: "Interactive shell for an environment",
		Long: `The shell command opens the environment and reads commands from an
interactive prompt. Every data command runs in its own transaction
unless one is held open with begin; it then joins that transaction,
and commit or abort decides the fate of everything written since.
Keys and values are text; prefix with 0x to enter hex.

Example:
  sdbx shell ./data
  sdbx shell ./data --read-only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(args)
		},
	}
	return cmd
}

func runShell(args []string) error {
	env, err := openEnv(args[0], false)
	if err != nil {
		return err
	}
	defer env.Close()

	s := &shell{env: env}
	return s.run()
}

// shell is the interactive command loop. current names the database
// commands operate on, empty for the main tree; txn is the transaction
// held open by begin, nil while each command commits on its own.
type shell struct {
	env     *sdbx.Env
	current string
	txn     *sdbx.Txn
	liner   *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sdbx_history")
}

var shellCommands = []string{
	"get", "put", "del", "delete",
	"scan", "ls", "list", "prefix",
	"count", "len", "stat", "dbs", "use",
	"begin", "commit", "abort", "rollback",
	"drop", "sync", "clear", "cls",
	"help", "exit", "quit", "q",
}

func (s *shell) run() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()
	defer func() {
		// A transaction still open when the shell exits is discarded.
		if s.txn != nil {
			s.txn.Abort()
		}
	}()

	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	if f, err := os.Open(historyFile()); err == nil {
		s.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("sdbx shell on %s\n", s.env.Path())
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := s.liner.Prompt(s.prompt())
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			s.saveHistory()
			return nil

		case "help", "?":
			s.printHelp()

		case "use":
			s.cmdUse(args)

		case "begin":
			s.cmdBegin()

		case "commit":
			s.cmdCommit()

		case "abort", "rollback":
			s.cmdAbort()

		case "get":
			s.cmdGet(args)

		case "put":
			s.cmdPut(args)

		case "del", "delete":
			s.cmdDel(args)

		case "scan", "ls", "list":
			s.cmdScan(args)

		case "prefix":
			s.cmdPrefix(args)

		case "count", "len":
			s.cmdCount()

		case "stat":
			s.cmdStat()

		case "dbs":
			s.cmdDBs()

		case "drop":
			s.cmdDrop(args)

		case "sync":
			s.cmdSync()

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	s.saveHistory()
	return nil
}

func (s *shell) prompt() string {
	p := "sdbx"
	if s.current != "" {
		p += ":" + s.current
	}
	if s.txn != nil {
		p += "*"
	}
	return p + "> "
}

// saveHistory persists command history to disk.
func (s *shell) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			s.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands.
func (s *shell) completer(line string) []string {
	var completions []string
	lower := strings.ToLower(line)
	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}
	return completions
}

func (s *shell) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  use [db]              Switch database (no argument: main tree)")
	fmt.Println("  get <key>             Read a value")
	fmt.Println("  put <key> <value>     Write a value")
	fmt.Println("  del <key> [value]     Delete a key, or one duplicate")
	fmt.Println("  scan [limit]          List entries in order")
	fmt.Println("  prefix <p> [limit]    List entries with a key prefix")
	fmt.Println("  count                 Count entries")
	fmt.Println("  stat                  Show tree statistics")
	fmt.Println("  dbs                   List named databases")
	fmt.Println("  begin                 Hold a write transaction open")
	fmt.Println("  commit                Commit the held transaction")
	fmt.Println("  abort                 Discard the held transaction")
	fmt.Println("  drop <db>             Delete a named database")
	fmt.Println("  sync                  Flush to disk")
	fmt.Println("  help                  Show this help")
	fmt.Println("  exit / quit / q       Exit")
	fmt.Println()
	fmt.Println("Keys and values are text; prefix with 0x for hex (e.g. 0xdeadbeef).")
}

// parseShellBytes reads text literally and 0x-prefixed input as hex.
func parseShellBytes(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", s, err)
		}
		return b, nil
	}
	return []byte(s), nil
}

// openCurrent opens the database the shell is pointed at under txn.
func (s *shell) openCurrent(txn *sdbx.Txn, create bool) (*sdbx.Database, error) {
	switch {
	case s.current == "":
		return txn.OpenRoot(0)
	case create:
		return txn.OpenDBI(s.current, sdbx.Create)
	default:
		return txn.OpenDBI(s.current, 0)
	}
}

// withDB opens the current database inside a transaction and hands it
// to fn. Write commands pass readonly false. While a transaction is
// held open the command joins it instead, and nothing is committed
// until the commit command.
func (s *shell) withDB(readonly bool, create bool, fn func(txn *sdbx.Txn, db *sdbx.Database) error) error {
	if s.txn != nil {
		db, err := s.openCurrent(s.txn, create)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(s.txn, db)
	}

	flags := sdbx.TxnReadWrite
	if readonly {
		flags = sdbx.TxnReadOnly
	}
	var db *sdbx.Database
	err := s.env.RunTxn(flags, func(txn *sdbx.Txn) error {
		var err error
		db, err = s.openCurrent(txn, create)
		if err != nil {
			return err
		}
		return fn(txn, db)
	})
	if db != nil {
		db.Close()
	}
	return err
}

func (s *shell) cmdBegin() {
	if s.txn != nil {
		fmt.Println("A transaction is already open; commit or abort it first.")
		return
	}
	txn, err := s.env.BeginTxn(nil, sdbx.TxnReadWrite)
	if err != nil {
		printError("%v\n", err)
		return
	}
	s.txn = txn
	fmt.Println("OK")
}

func (s *shell) cmdCommit() {
	if s.txn == nil {
		fmt.Println("No open transaction.")
		return
	}
	_, err := s.txn.Commit()
	s.txn = nil
	if err != nil {
		printError("%v\n", err)
		return
	}
	fmt.Println("OK")
}

func (s *shell) cmdAbort() {
	if s.txn == nil {
		fmt.Println("No open transaction.")
		return
	}
	s.txn.Abort()
	s.txn = nil
	fmt.Println("OK")
}

func (s *shell) cmdUse(args []string) {
	if len(args) == 0 {
		s.current = ""
		return
	}
	s.current = args[0]
}

func (s *shell) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: get <key>")
		return
	}
	key, err := parseShellBytes(args[0])
	if err != nil {
		printError("%v\n", err)
		return
	}
	err = s.withDB(true, false, func(txn *sdbx.Txn, db *sdbx.Database) error {
		val, err := db.Get(txn, key)
		if err != nil {
			return err
		}
		fmt.Println(formatBytes(val))
		return nil
	})
	if sdbx.IsNotFound(err) {
		fmt.Println("(not found)")
		return
	}
	if err != nil {
		printError("%v\n", err)
	}
}

func (s *shell) cmdPut(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: put <key> <value>")
		return
	}
	key, err := parseShellBytes(args[0])
	if err != nil {
		printError("%v\n", err)
		return
	}
	val, err := parseShellBytes(args[1])
	if err != nil {
		printError("%v\n", err)
		return
	}
	err = s.withDB(false, true, func(txn *sdbx.Txn, db *sdbx.Database) error {
		return db.Put(txn, key, val, 0)
	})
	if err != nil {
		printError("%v\n", err)
		return
	}
	fmt.Println("OK")
}

func (s *shell) cmdDel(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("Usage: del <key> [value]")
		return
	}
	key, err := parseShellBytes(args[0])
	if err != nil {
		printError("%v\n", err)
		return
	}
	var val []byte
	if len(args) == 2 {
		if val, err = parseShellBytes(args[1]); err != nil {
			printError("%v\n", err)
			return
		}
	}
	err = s.withDB(false, false, func(txn *sdbx.Txn, db *sdbx.Database) error {
		return db.Del(txn, key, val)
	})
	if sdbx.IsNotFound(err) {
		fmt.Println("(not found)")
		return
	}
	if err != nil {
		printError("%v\n", err)
		return
	}
	fmt.Println("OK")
}

func parseLimit(args []string, def int) int {
	if len(args) == 0 {
		return def
	}
	n, err := strconv.Atoi(args[len(args)-1])
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *shell) cmdScan(args []string) {
	limit := parseLimit(args, 50)
	err := s.withDB(true, false, func(txn *sdbx.Txn, db *sdbx.Database) error {
		return db.RunCursor(txn, func(cur *sdbx.Cursor) error {
			n := 0
			for k, v, err := cur.First(); ; k, v, err = cur.Next() {
				if err != nil {
					if sdbx.IsNotFound(err) {
						break
					}
					return err
				}
				if n >= limit {
					fmt.Printf("... (stopped at %d)\n", limit)
					break
				}
				fmt.Printf("%s = %s\n", formatBytes(k), formatBytes(v))
				n++
			}
			fmt.Printf("%d entr(ies)\n", n)
			return nil
		})
	})
	if err != nil {
		printError("%v\n", err)
	}
}

func (s *shell) cmdPrefix(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: prefix <p> [limit]")
		return
	}
	prefix, err := parseShellBytes(args[0])
	if err != nil {
		printError("%v\n", err)
		return
	}
	limit := parseLimit(args[1:], 50)
	err = s.withDB(true, false, func(txn *sdbx.Txn, db *sdbx.Database) error {
		return db.RunCursor(txn, func(cur *sdbx.Cursor) error {
			n := 0
			for k, v, err := cur.SetRange(prefix); ; k, v, err = cur.Next() {
				if err != nil {
					if sdbx.IsNotFound(err) {
						break
					}
					return err
				}
				if !bytes.HasPrefix(k, prefix) || n >= limit {
					break
				}
				fmt.Printf("%s = %s\n", formatBytes(k), formatBytes(v))
				n++
			}
			fmt.Printf("%d entr(ies)\n", n)
			return nil
		})
	})
	if err != nil {
		printError("%v\n", err)
	}
}

func (s *shell) cmdCount() {
	err := s.withDB(true, false, func(txn *sdbx.Txn, db *sdbx.Database) error {
		st, err := db.Stat(txn)
		if err != nil {
			return err
		}
		fmt.Println(st.Entries)
		return nil
	})
	if err != nil {
		printError("%v\n", err)
	}
}

func (s *shell) cmdStat() {
	err := s.withDB(true, false, func(txn *sdbx.Txn, db *sdbx.Database) error {
		st, err := db.Stat(txn)
		if err != nil {
			return err
		}
		fmt.Printf("depth=%d branch=%d leaf=%d overflow=%d entries=%d\n",
			st.Depth, st.BranchPages, st.LeafPages, st.OverflowPages, st.Entries)
		return nil
	})
	if err != nil {
		printError("%v\n", err)
	}
}

func (s *shell) cmdDBs() {
	list := func(txn *sdbx.Txn) error {
		names, err := txn.ListDBI()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		fmt.Printf("%d database(s)\n", len(names))
		return nil
	}
	var err error
	if s.txn != nil {
		err = list(s.txn)
	} else {
		err = s.env.View(list)
	}
	if err != nil {
		printError("%v\n", err)
	}
}

func (s *shell) cmdDrop(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: drop <db>")
		return
	}
	name := args[0]
	var db *sdbx.Database
	drop := func(txn *sdbx.Txn) error {
		var err error
		db, err = txn.OpenDBI(name, 0)
		if err != nil {
			return err
		}
		return db.Drop(txn)
	}
	var err error
	if s.txn != nil {
		err = drop(s.txn)
	} else {
		err = s.env.Update(drop)
	}
	if db != nil {
		db.Close()
	}
	if err != nil {
		printError("%v\n", err)
		return
	}
	if s.current == name {
		s.current = ""
	}
	fmt.Println("OK")
}

func (s *shell) cmdSync() {
	if s.txn != nil {
		fmt.Println("Commit or abort the open transaction first.")
		return
	}
	if err := s.env.Sync(true); err != nil {
		printError("%v\n", err)
		return
	}
	fmt.Println("OK")
}
