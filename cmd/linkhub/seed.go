package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/linkhub/pkg/store/sqlite"
	"github.com/codeGROOVE-dev/linkhub/pkg/store/static"
)

var seedPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a SQLite store and fill it with the static page data",
	Long: `Create a SQLite store and fill it with the built-in page data, or with the
data file named by store.data_file. Existing records are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		logger := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := seedPath
		if path == "" {
			path = cfg.Store.SQLitePath
		}
		if path == "" {
			path = "linkhub.db"
		}

		snap := static.Default()
		if cfg.Store.DataFile != "" {
			if snap, err = static.LoadFile(cfg.Store.DataFile); err != nil {
				return err
			}
		}

		db, err := sqlite.Open(ctx, path, logger)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // best effort on exit

		n, err := db.Seed(ctx, snap)
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d records into %s\n", n, db.Path())
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPath, "db", "", "SQLite file (default store.sqlite_path or linkhub.db)")
}
