package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gadgethost/pkg/cache"
	"github.com/matzehuels/gadgethost/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached registry snapshots and feature content",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var backend bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the on-disk cache",
		Long: `Clear the on-disk cache used by render and features.

With --backend the cache backend named in the config file (for example a
shared redis) is cleared as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}

			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
			} else {
				fc, err := cache.NewFileCache(dir)
				if err != nil {
					return err
				}
				count, err := fc.Purge()
				if err != nil {
					return err
				}
				printSuccess("Cleared %d cached entries", count)
				printDetail("Directory: %s", dir)
			}

			if !backend {
				return nil
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return clearBackend(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&backend, "backend", false, "also clear the configured cache backend")
	return cmd
}

func clearBackend(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	b, err := cfg.OpenCache(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	attempted, err := cache.Clear(ctx, b)
	if err != nil {
		return fmt.Errorf("clear %s cache: %w", cfg.Cache.Backend, err)
	}
	if !attempted {
		printInfo("The %s backend keeps nothing to clear", cfg.Cache.Backend)
		return nil
	}
	printSuccess("Cleared %s backend", cfg.Cache.Backend)
	return nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}
