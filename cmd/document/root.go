package document

import (
	"fmt"
	"io"

	"github.com/mediamanager/mstore/cmd/util"
	"github.com/mediamanager/mstore/lib/collection"
	"github.com/mediamanager/mstore/lib/doc"
	"github.com/mediamanager/mstore/lib/ident"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	docs *collection.DocStore

	// DocumentCommands represents the document command group
	DocumentCommands = &cobra.Command{
		Use:   "doc",
		Short: "Work with the content addressed document store",
		Long: `Documents are nested string maps given as JSON, e.g. '{"title":"x","meta":{"lang":"de"}}'.

put stores a document under the ID derived from its content. update merges a patch
into a stored document and stores the result under the new content ID; on conflicting
values the stored document wins. patch merges in place under the existing ID and the
patch wins.`,
	}
)

func init() {
	DocumentCommands.PersistentFlags().String("prefix", "docs/", util.WrapString("Key prefix of the document collection"))

	DocumentCommands.AddCommand(putCmd)
	DocumentCommands.AddCommand(getCmd)
	DocumentCommands.AddCommand(updateCmd)
	DocumentCommands.AddCommand(patchCmd)
	DocumentCommands.AddCommand(dropCmd)
	DocumentCommands.AddCommand(lsCmd)
}

func openDocs() error {
	env, err := util.CurrentEnv()
	if err != nil {
		return err
	}
	local, err := env.Local()
	if err != nil {
		return err
	}
	docs = collection.NewDocStore(local, viper.GetString("prefix"))
	return nil
}

func printDoc(w io.Writer, id ident.ID, d doc.Document) {
	fmt.Fprintf(w, "id=%s\n%s\n", id, d.Pretty())
}
