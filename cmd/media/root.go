package media

import (
	"fmt"

	"github.com/mediamanager/mstore/cmd/util"
	"github.com/mediamanager/mstore/lib/collection"
	"github.com/mediamanager/mstore/lib/media"
	"github.com/mediamanager/mstore/lib/serializer"
	"github.com/spf13/cobra"
)

var (
	coll *media.Collection

	// MediaCommands represents the media command group
	MediaCommands = &cobra.Command{
		Use:   "media",
		Short: "Work with the local media collection",
	}
)

func init() {
	MediaCommands.AddCommand(lsCmd)
	MediaCommands.AddCommand(getCmd)
	MediaCommands.AddCommand(addCmd)
	MediaCommands.AddCommand(setCmd)
	MediaCommands.AddCommand(dropCmd)
	MediaCommands.AddCommand(updateCmd)
	MediaCommands.AddCommand(watchCmd)
}

// openCollection opens the media collection on the local store
func openCollection() (*util.Env, error) {
	env, err := util.CurrentEnv()
	if err != nil {
		return nil, err
	}
	local, err := env.Local()
	if err != nil {
		return nil, err
	}
	codec, ok := serializer.ByName[media.Media](env.Conf.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", env.Conf.Codec)
	}
	coll = media.NewCollection(local, collection.WithCodec(codec))
	return env, nil
}
