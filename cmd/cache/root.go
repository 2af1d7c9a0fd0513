package cache

import (
	"fmt"

	"github.com/mediamanager/mstore/cmd/util"
	"github.com/spf13/cobra"
)

var (
	// CacheCommands represents the cache command group
	CacheCommands = &cobra.Command{
		Use:   "cache",
		Short: "Maintain the write-back cache (see kv --cache)",
	}
	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Pushes pending write-back operations to the remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := util.CurrentEnv()
			if err != nil {
				return err
			}
			c, err := env.Cache()
			if err != nil {
				return err
			}
			n, err := c.Flush(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "flushed %d keys\n", n)
			return err
		},
	}
	dirtyCmd = &cobra.Command{
		Use:   "dirty",
		Short: "Lists keys with pending write-back operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := util.CurrentEnv()
			if err != nil {
				return err
			}
			c, err := env.Cache()
			if err != nil {
				return err
			}
			keys, err := c.Dirty(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
)

func init() {
	CacheCommands.AddCommand(flushCmd)
	CacheCommands.AddCommand(dirtyCmd)
}
