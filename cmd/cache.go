package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilletech/triage-cli/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the durable classification cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show durable cache entry count",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cfg.Cache.Durable {
			fmt.Fprintln(os.Stderr, "No durable cache configured.")
			return nil
		}

		c, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		n, err := c.Len(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d cached classifications in %s\n", n, cfg.Cache.Path)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every durable cache entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cfg.Cache.Durable {
			fmt.Fprintln(os.Stderr, "No durable cache configured.")
			return nil
		}

		c, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		if err := c.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
