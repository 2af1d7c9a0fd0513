package kv

import (
	"fmt"
	"strings"

	"github.com/mediamanager/mstore/cmd/util"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			key := args[0]
			value := args[1]
			if err := kvStore.Set(cmd.Context(), key, value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			key := args[0]
			resp, ok, err := kvStore.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			if err := kvStore.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			key := args[0]
			found, err := kvStore.Has(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, found=%t\n", key, found)
			return nil
		},
	}
	lsCmd = &cobra.Command{
		Use:   "ls [prefix]",
		Short: "Lists all key value pairs, optionally only those whose key starts with prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			w := cmd.OutOrStdout()
			n := 0
			err := kvStore.Range(cmd.Context(), func(key, value string) bool {
				if strings.HasPrefix(key, prefix) {
					fmt.Fprintf(w, "%s=%s\n", key, value)
					n++
				}
				return true
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d entries\n", n)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Shows information about the engine of the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := util.CurrentEnv()
			if err != nil {
				return err
			}
			local, err := env.Local()
			if err != nil {
				return err
			}
			info := local.DBInfo()
			features := make([]string, 0, len(info.SupportedFeatures))
			for _, f := range info.SupportedFeatures {
				features = append(features, f.String())
			}
			return util.PrintYAML(cmd.OutOrStdout(), map[string]any{
				"engine":   string(info.DbType),
				"entries":  info.Entries,
				"size":     info.SizeBytes,
				"features": features,
				"metadata": info.Metadata,
				"writes":   local.Writes(),
			})
		},
	}
)
