package media

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mediamanager/mstore/cmd/util"
	"github.com/mediamanager/mstore/lib/collection"
	"github.com/mediamanager/mstore/lib/ident"
	"github.com/mediamanager/mstore/lib/media"
	"github.com/mediamanager/mstore/lib/store/rstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "Lists all media records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openCollection(); err != nil {
				return err
			}
			list, err := coll.List(cmd.Context())
			if err != nil {
				return err
			}
			ids := make([]ident.ID, 0, len(list))
			for id := range list {
				ids = append(ids, id)
			}
			ident.Sort(ids)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tFORMAT\tURL")
			for _, id := range ids {
				m := list[id]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, m.Title, m.Format, m.URL)
			}
			return tw.Flush()
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Shows one media record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openCollection(); err != nil {
				return err
			}
			m, ok, err := coll.Get(cmd.Context(), ident.FromString(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("media %s not found", args[0])
			}
			return util.PrintYAML(cmd.OutOrStdout(), m)
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [url] [title] [format]",
		Short: "Adds a media record under a new ID (or --id)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openCollection(); err != nil {
				return err
			}
			id := ident.FromString(viper.GetString("id"))
			if id.IsZero() {
				id = ident.New()
			}
			m := media.Media{URL: args[0], Title: args[1], Format: args[2]}
			if err := coll.Insert(cmd.Context(), id, m); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [id] [url] [title] [format]",
		Short: "Creates or replaces the media record with the given ID",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openCollection(); err != nil {
				return err
			}
			m := media.Media{URL: args[1], Title: args[2], Format: args[3]}
			if err := coll.Set(cmd.Context(), ident.FromString(args[0]), m); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "set successfully")
			return nil
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [id]",
		Short: "Drops a media record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openCollection(); err != nil {
				return err
			}
			if err := coll.Drop(cmd.Context(), ident.FromString(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "drop successfully")
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [id] [field=value]...",
		Short: "Assigns fields (title, format, url) of a media record",
		Long: `Assigns fields (title, format, url) of a local media record.
With --push the assignments are also sent to the remote.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCollection()
			if err != nil {
				return err
			}
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			id := ident.FromString(args[0])

			m, err := media.Update(cmd.Context(), coll, id, fields...)
			if err != nil {
				return err
			}
			if viper.GetBool("push") {
				remote, err := env.Remote()
				if err != nil {
					return err
				}
				if err := media.Push(cmd.Context(), remote, id, fields...); err != nil {
					return err
				}
			}
			return util.PrintYAML(cmd.OutOrStdout(), m)
		},
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Prints media records as they are created or dropped",
		Long: `Prints media records as they are created or dropped in the local collection.
With --remote the remote event stream is applied to the local collection as well,
so remote changes show up here too. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCollection()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			sub := coll.Subscribe()
			defer sub.Close()

			errc := make(chan error, 1)
			if viper.GetBool("remote") {
				remote, err := env.Remote()
				if err != nil {
					return err
				}
				go func() {
					errc <- remote.Events(ctx, func(ev rstore.Event) {
						if err := media.ApplyEvent(ctx, coll, ev); err != nil {
							util.Logger.Warningf("apply remote event %s %s: %v", ev.Kind, ev.ID, err)
						}
					})
				}()
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-errc:
					return err
				case ev, ok := <-sub.Events():
					if !ok {
						return nil
					}
					printEvent(w, ev)
				}
			}
		},
	}
)

func init() {
	addCmd.Flags().String("id", "", util.WrapString("ID of the new record (default: random)"))
	updateCmd.Flags().Bool("push", false, util.WrapString("Also send the assignments to the remote"))
	watchCmd.Flags().Bool("remote", false, util.WrapString("Follow the remote event stream"))
}

func parseFields(args []string) ([]media.Field, error) {
	fields := make([]media.Field, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		f, err := media.ParseField(name, value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func printEvent(w io.Writer, ev collection.Event[media.Media]) {
	switch ev.Kind {
	case collection.EventAssign:
		fmt.Fprintf(w, "+ %s\t%s\t%s\t%s\n", ev.ID, ev.Value.Title, ev.Value.Format, ev.Value.URL)
	case collection.EventDelete:
		fmt.Fprintf(w, "- %s\n", ev.ID)
	}
}
