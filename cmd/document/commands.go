package document

import (
	"fmt"

	"github.com/mediamanager/mstore/lib/doc"
	"github.com/mediamanager/mstore/lib/ident"
	"github.com/spf13/cobra"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [json]",
		Short: "Stores a document and prints its content ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDocs(); err != nil {
				return err
			}
			d, err := doc.Parse(args[0])
			if err != nil {
				return err
			}
			id, err := docs.Put(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id] [path]",
		Short: "Shows a document, or the part at a dotted path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDocs(); err != nil {
				return err
			}
			id := ident.FromString(args[0])
			d, ok, err := docs.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("document %s not found", id)
			}
			if len(args) == 2 {
				if d, ok = d.Get(args[1]); !ok {
					return fmt.Errorf("document %s has no %s", id, args[1])
				}
			}
			printDoc(cmd.OutOrStdout(), id, d)
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [id] [json]",
		Short: "Merges a patch into a document and stores the result under its new content ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDocs(); err != nil {
				return err
			}
			patch, err := doc.Parse(args[1])
			if err != nil {
				return err
			}
			id, err := docs.Update(cmd.Context(), ident.FromString(args[0]), patch)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	patchCmd = &cobra.Command{
		Use:   "patch [id] [json]",
		Short: "Merges a patch into a document in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDocs(); err != nil {
				return err
			}
			patch, err := doc.Parse(args[1])
			if err != nil {
				return err
			}
			id := ident.FromString(args[0])
			d, err := docs.Patch(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			printDoc(cmd.OutOrStdout(), id, d)
			return nil
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [id]",
		Short: "Drops a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDocs(); err != nil {
				return err
			}
			if err := docs.Drop(cmd.Context(), ident.FromString(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "drop successfully")
			return nil
		},
	}
	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "Lists all documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDocs(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return docs.Iterate(cmd.Context(), func(id ident.ID, d doc.Document) bool {
				fmt.Fprintf(w, "%s\t%s\n", id, d)
				return true
			})
		},
	}
)
