package main

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/sqlshadow/redissink"
)

var recentFlags struct {
	n int64
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the newest slow-query records from the Redis sink",
	Long: `Print the newest slow-query records from the Redis sink configured in the
redis section, one JSON object per line, newest first.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Redis == nil {
			return errors.New("no redis section in config")
		}

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		sink := redissink.New(client, redissink.WithKey(cfg.Redis.Key))
		records, err := sink.Recent(cmd.Context(), recentFlags.n)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range records {
			fmt.Fprintln(out, string(r))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recentCmd)

	recentCmd.Flags().Int64VarP(&recentFlags.n, "number", "n", 10, "number of records")
}
