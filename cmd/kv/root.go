package kv

import (
	"github.com/mediamanager/mstore/cmd/util"
	"github.com/mediamanager/mstore/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	kvStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Raw key-value access to the local store, the remote or the cache",
	}
)

func init() {
	KeyValueCommands.PersistentFlags().Bool("remote", false, util.WrapString("Operate on the remote store instead of the local one"))
	KeyValueCommands.PersistentFlags().Bool("cache", false, util.WrapString("Operate through the cache (local store over the remote, see --coherency)"))

	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(lsCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// openStore selects the store for a kv command
func openStore() error {
	env, err := util.CurrentEnv()
	if err != nil {
		return err
	}
	kvStore, err = env.Store(viper.GetBool("remote"), viper.GetBool("cache"))
	return err
}
