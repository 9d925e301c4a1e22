package cli

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"eve-hullscout/internal/logger"
	"eve-hullscout/internal/snapshot"
)

const snapshotFile = "market-orders-latest.v3.csv.bz2"

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the local market order snapshot",
	}
	cmd.AddCommand(a.snapshotDownloadCmd(), a.snapshotImportCmd(), a.snapshotStatusCmd())
	return cmd
}

func (a *app) snapshotDownloadCmd() *cobra.Command {
	var url string
	var force bool
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the latest market order dump and index it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = a.cfg.SnapshotURL
			}
			fresh := a.cfg.SnapshotMaxAge
			if force {
				fresh = 0
			}
			store, err := a.openSnapshot()
			if err != nil {
				return err
			}
			defer store.Close()

			dst := filepath.Join(a.cfg.DataDir, snapshotFile)
			downloaded, err := snapshot.Download(cmd.Context(), url, dst, fresh)
			if err != nil {
				return err
			}
			if !downloaded && store.Ready() == nil {
				logger.Info("SNAPSHOT", "Index is current, nothing to do")
				return a.printStatus(store)
			}
			if _, err := store.ImportFile(cmd.Context(), dst); err != nil {
				return err
			}
			return a.printStatus(store)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "dump URL (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "download even if the local file is fresh")
	return cmd
}

func (a *app) snapshotImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Index a market order CSV (.csv or .csv.bz2)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openSnapshot()
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := store.ImportFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.printStatus(store)
		},
	}
}

func (a *app) snapshotStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the snapshot index holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openSnapshot()
			if err != nil {
				return err
			}
			defer store.Close()
			return a.printStatus(store)
		},
	}
}

func (a *app) printStatus(store *snapshot.Store) error {
	st := store.Status()
	fmt.Fprintln(a.out, titleStyle.Render("Snapshot"))
	if st.Rows == 0 && st.Source == "" {
		fmt.Fprintln(a.out, "  no snapshot imported")
		return nil
	}
	fmt.Fprintf(a.out, "  source:   %s\n", st.Source)
	fmt.Fprintf(a.out, "  orders:   %s\n", humanize.Comma(st.Rows))
	fmt.Fprintf(a.out, "  taken:    %s\n", humanize.Time(st.TakenAt))
	fmt.Fprintf(a.out, "  imported: %s\n", humanize.Time(st.ImportedAt))
	if err := store.Ready(); err != nil {
		fmt.Fprintln(a.out, warnStyle.Render("  "+err.Error()))
	}
	return nil
}
