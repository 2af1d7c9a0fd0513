package reconcile

import (
	"fmt"

	"github.com/mediamanager/mstore/cmd/util"
	"github.com/mediamanager/mstore/lib/collection"
	"github.com/mediamanager/mstore/lib/media"
	"github.com/mediamanager/mstore/lib/serializer"
	"github.com/mediamanager/mstore/lib/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// SyncCmd reconciles the local media collection with the remote
	SyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Reconciles the local media collection with the remote",
		Long: `Reconciles the local media collection with the remote.

By default the local IDs are sent to the remote, records missing locally are stored
and local records unknown to the remote are handled by --sync-policy (prune drops
them, share pushes them to the remote).

With --bulk the complete remote record set is fetched instead and every remote
record replaces its local version; local-only records are kept.

With --loop the sync repeats every --sync-interval seconds and whenever a media
record is created or dropped locally, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: run,
	}
)

func init() {
	SyncCmd.Flags().Bool("loop", false, util.WrapString("Keep syncing until interrupted"))
	SyncCmd.Flags().Bool("bulk", false, util.WrapString("Fetch the complete remote record set instead of reconciling IDs"))
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := util.CurrentEnv()
	if err != nil {
		return err
	}
	local, err := env.Local()
	if err != nil {
		return err
	}
	remote, err := env.Remote()
	if err != nil {
		return err
	}
	codec, ok := serializer.ByName[media.Media](env.Conf.Codec)
	if !ok {
		return fmt.Errorf("unknown codec %q", env.Conf.Codec)
	}
	coll := media.NewCollection(local, collection.WithCodec(codec))
	w := cmd.OutOrStdout()

	if viper.GetBool("bulk") {
		n, err := coll.Sync(ctx, remote)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "stored %d remote records\n", n)
		return nil
	}

	policy, err := syncer.ParsePolicy(env.Conf.SyncPolicy)
	if err != nil {
		return err
	}
	engine, err := syncer.New(coll, remote, policy)
	if err != nil {
		return err
	}

	if viper.GetBool("loop") {
		interval := env.Conf.SyncInterval()
		if interval <= 0 {
			return fmt.Errorf("sync interval must be positive, got %s", interval)
		}
		fmt.Fprintf(w, "syncing every %s (policy %s), interrupt to stop\n", interval, policy)
		engine.Loop(ctx, interval)
		fmt.Fprintf(w, "stopped after %d runs\n", engine.Runs())
		return nil
	}

	report, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, report)
	return nil
}
