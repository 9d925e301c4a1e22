package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"eve-hullscout/internal/refdata"
)

func (a *app) lookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Resolve type and system metadata through ESI",
	}
	cmd.AddCommand(a.lookupTypeCmd(), a.lookupSystemCmd())
	return cmd
}

func (a *app) lookupTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "type <id>",
		Short: "Show an inventory type's name and category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			names := refdata.New(a.esiClient(), a.cfg.MetadataTTL)
			item, err := names.GetItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d\t%s\t%s\n", item.ID, item.Name, item.Category)
			return nil
		},
	}
}

func (a *app) lookupSystemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "system <id|name>",
		Short: "Show a solar system's name and security status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				// Names need the SDE.
				data, uerr := a.loadUniverse(cmd.Context())
				if uerr != nil {
					return uerr
				}
				if id, err = resolveSystem(data.Universe, args[0]); err != nil {
					return err
				}
			}
			names := refdata.New(a.esiClient(), a.cfg.MetadataTTL)
			sys, err := names.GetSystem(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d\t%s\t%.2f\n", sys.ID, sys.Name, sys.Security)
			return nil
		},
	}
}

func parseID(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return int32(n), nil
}
