package main

import (
	"github.com/Giulio2002/sdbx"
	"github.com/spf13/cobra"
)

var statAll bool

func init() {
	cmd := newStatCmd()
	cmd.Flags().BoolVarP(&statAll, "all", "a", false, "Include every named database")
	rootCmd.AddCommand(cmd)
}

func newStatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat <env> [db...]",
		Short: "Report tree statistics for an environment",
		Long: `The stat command reports page and entry counts for the main tree and,
optionally, for named databases.

Example:
  sdbx stat ./data
  sdbx stat ./data accounts blocks
  sdbx stat ./data --all --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStat(args)
		},
	}
	return cmd
}

// statReport is one tree's statistics, named for output.
type statReport struct {
	Database      string `json:"database"`
	PageSize      uint   `json:"page_size"`
	Depth         uint   `json:"depth"`
	BranchPages   uint64 `json:"branch_pages"`
	LeafPages     uint64 `json:"leaf_pages"`
	OverflowPages uint64 `json:"overflow_pages"`
	Entries       uint64 `json:"entries"`
}

func report(name string, st *sdbx.Stat) statReport {
	return statReport{
		Database:      name,
		PageSize:      st.PageSize,
		Depth:         st.Depth,
		BranchPages:   st.BranchPages,
		LeafPages:     st.LeafPages,
		OverflowPages: st.OverflowPages,
		Entries:       st.Entries,
	}
}

func runStat(args []string) error {
	env, err := openEnv(args[0], true)
	if err != nil {
		return err
	}
	defer env.Close()

	names := args[1:]
	if statAll {
		if err := env.View(func(txn *sdbx.Txn) error {
			names, err = txn.ListDBI()
			return err
		}); err != nil {
			return err
		}
	}

	reports := make([]statReport, 0, len(names)+1)
	st, err := env.Stat()
	if err != nil {
		return err
	}
	reports = append(reports, report("(main)", st))

	for _, name := range names {
		if err := env.View(func(txn *sdbx.Txn) error {
			db, err := txn.OpenDBI(name, 0)
			if err != nil {
				return err
			}
			defer db.Close()
			st, err := db.Stat(txn)
			if err != nil {
				return err
			}
			reports = append(reports, report(name, st))
			return nil
		}); err != nil {
			return err
		}
	}

	if jsonOut {
		return printJSON(reports)
	}
	for _, r := range reports {
		printInfo("Status of %s\n", r.Database)
		printInfo("  Page size: %d\n", r.PageSize)
		printInfo("  Tree depth: %d\n", r.Depth)
		printInfo("  Branch pages: %d\n", r.BranchPages)
		printInfo("  Leaf pages: %d\n", r.LeafPages)
		printInfo("  Overflow pages: %d\n", r.OverflowPages)
		printInfo("  Entries: %d\n", r.Entries)
	}
	return nil
}
