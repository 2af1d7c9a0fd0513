package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/mediamanager/mstore/cmd/cache"
	"github.com/mediamanager/mstore/cmd/document"
	"github.com/mediamanager/mstore/cmd/kv"
	"github.com/mediamanager/mstore/cmd/media"
	"github.com/mediamanager/mstore/cmd/reconcile"
	"github.com/mediamanager/mstore/cmd/util"
	"github.com/mediamanager/mstore/lib/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "mstore",
		Short: "local media store with remote sync",
		Long: fmt.Sprintf(`mstore (v%s)

Keeps media metadata and documents in a local key-value store and
reconciles them with a remote media service.

Every flag can also be set as environment variable MSTORE_<FLAG>
(e.g. MSTORE_ORIGIN=http://localhost:8080), also from .env files.`, Version),
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: report,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mstore v%s\n", Version)
		},
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := util.CurrentEnv()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), env.Conf.String())
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupClientFlags(RootCmd)

	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(media.MediaCommands)
	RootCmd.AddCommand(document.DocumentCommands)
	RootCmd.AddCommand(reconcile.SyncCmd)
	RootCmd.AddCommand(cache.CacheCommands)
	RootCmd.AddCommand(configCmd)
	RootCmd.AddCommand(versionCmd)
}

// setup binds the flags, configures the loggers and prepares the stores
func setup(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	conf := util.GetClientConfig()
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}
	util.SetEnv(util.NewEnv(conf))
	return nil
}

// report prints the metrics if requested
func report(cmd *cobra.Command, _ []string) error {
	if !viper.GetBool("metrics") {
		return nil
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	metrics.WritePrometheus(w, false)
	if env, err := util.CurrentEnv(); err == nil {
		gometrics.WriteOnce(env.Registry, w)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd.ExecuteContext(ctx)
	stop()

	if cerr := util.CloseEnv(); cerr != nil {
		fmt.Fprintf(os.Stderr, "closing local store: %v\n", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
