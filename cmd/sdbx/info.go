package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <env>",
		Short: "Report environment geometry and reader usage",
		Long: `The info command reports the environment's size geometry, page sizes,
last transaction id and reader slot usage.

Example:
  sdbx info ./data
  sdbx info ./data --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

func runInfo(args []string) error {
	env, err := openEnv(args[0], true)
	if err != nil {
		return err
	}
	defer env.Close()

	info, err := env.Info()
	if err != nil {
		return err
	}
	flags, err := env.Flags()
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"path":             env.Path(),
			"flags":            flags,
			"map_size":         info.MapSize,
			"geo_lower":        info.Geo.Lower,
			"geo_upper":        info.Geo.Upper,
			"geo_current":      info.Geo.Current,
			"geo_shrink":       info.Geo.Shrink,
			"geo_grow":         info.Geo.Grow,
			"last_page":        info.LastPNO,
			"last_txn_id":      info.LastTxnID,
			"max_readers":      info.MaxReaders,
			"num_readers":      info.NumReaders,
			"page_size":        info.PageSize,
			"system_page_size": info.SystemPageSize,
		})
	}

	printInfo("Environment: %s\n", env.Path())
	printInfo("  Flags: 0x%x\n", flags)
	printInfo("  Map size: %d\n", info.MapSize)
	printInfo("  Geometry: lower=%d upper=%d current=%d shrink=%d grow=%d\n",
		info.Geo.Lower, info.Geo.Upper, info.Geo.Current, info.Geo.Shrink, info.Geo.Grow)
	printInfo("  Last page used: %d\n", info.LastPNO)
	printInfo("  Last transaction id: %d\n", info.LastTxnID)
	printInfo("  Readers: %d of %d in use\n", info.NumReaders, info.MaxReaders)
	printInfo("  Page size: %d (system %d)\n", info.PageSize, info.SystemPageSize)
	return nil
}
