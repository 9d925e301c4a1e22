package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"eve-hullscout/internal/config"
	"eve-hullscout/internal/engine"
	"eve-hullscout/internal/hulls"
	"eve-hullscout/internal/logger"
	"eve-hullscout/internal/refdata"
)

type scanFlags struct {
	from             string
	baseline         string
	jumps            int
	types            string
	minPrice         string
	minRouteSecurity float64
	concurrency      int
	maxFailureRatio  float64
	timeout          time.Duration
	partial          bool
	export           string
}

// apply copies every flag the user set over the loaded scan config.
func (f *scanFlags) apply(cmd *cobra.Command, s *config.ScanConfig) error {
	fl := cmd.Flags()
	if fl.Changed("from") {
		s.Reference = f.from
	}
	if fl.Changed("baseline") {
		s.Baseline = f.baseline
	}
	if fl.Changed("jumps") {
		s.MaxJumps = f.jumps
	}
	if fl.Changed("types") {
		s.Types = f.types
	}
	if fl.Changed("min-price") {
		p, err := decimal.NewFromString(f.minPrice)
		if err != nil {
			return fmt.Errorf("--min-price: %w", err)
		}
		s.MinPrice = p
	}
	if fl.Changed("min-security") {
		s.MinRouteSecurity = f.minRouteSecurity
	}
	if fl.Changed("concurrency") {
		s.Concurrency = f.concurrency
	}
	if fl.Changed("max-failure-ratio") {
		s.MaxFailureRatio = f.maxFailureRatio
	}
	if fl.Changed("timeout") {
		s.Timeout = f.timeout
	}
	if fl.Changed("partial") {
		s.PartialOnCancel = f.partial
	}
	if fl.Changed("export") {
		s.ExportDir = f.export
	}
	return nil
}

func (a *app) scanCmd() *cobra.Command {
	var f scanFlags
	def := config.Default().Scan

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find hulls listed at or below the baseline price within a jump radius",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.cfg.Scan
			if err := f.apply(cmd, &s); err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return err
			}
			return a.runScan(cmd, s)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.from, "from", def.Reference, "reference system name or id")
	fl.StringVar(&f.baseline, "baseline", def.Baseline, "baseline trade hub system name or id")
	fl.IntVar(&f.jumps, "jumps", def.MaxJumps, "maximum stargate jumps from the reference system")
	fl.StringVar(&f.types, "types", def.Types, "hull group (battleship, cruiser, command, all) and/or type ids, comma separated")
	fl.StringVar(&f.minPrice, "min-price", def.MinPrice.String(), "ignore listings below this price (ISK)")
	fl.Float64Var(&f.minRouteSecurity, "min-security", def.MinRouteSecurity, "skip systems below this security status when expanding the radius")
	fl.IntVar(&f.concurrency, "concurrency", def.Concurrency, "maximum concurrent listing fetches")
	fl.Float64Var(&f.maxFailureRatio, "max-failure-ratio", def.MaxFailureRatio, "fail the run when more than this share of fetches fail")
	fl.DurationVar(&f.timeout, "timeout", def.Timeout, "overall scan deadline (0 = none)")
	fl.BoolVar(&f.partial, "partial", def.PartialOnCancel, "print deals gathered so far when interrupted")
	fl.StringVar(&f.export, "export", def.ExportDir, "write results as JSON into this directory")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, s config.ScanConfig) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := a.loadUniverse(ctx)
	if err != nil {
		return err
	}
	u := data.Universe
	origin, err := resolveSystem(u, s.Reference)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	baseline, err := resolveSystem(u, s.Baseline)
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	types, err := hulls.ParseSelection(s.Types)
	if err != nil {
		return err
	}

	client := a.esiClient()
	source, release, err := a.listingSource(u, client)
	if err != nil {
		return err
	}
	defer release()
	names := refdata.New(client, a.cfg.MetadataTTL)

	logger.Section("Scan")
	logger.Stats("Reference", u.SystemName(origin))
	logger.Stats("Baseline", u.SystemName(baseline))
	logger.Stats("Max jumps", s.MaxJumps)
	if dist, err := u.ResolveMinSecurity(origin, s.MaxJumps, s.MinRouteSecurity); err == nil {
		logger.Stats("Systems in range", len(dist))
		logger.Stats("Regions", regionSummary(data, dist))
	}
	logger.Stats("Hull types", len(types))
	logger.Stats("Min price", formatISK(s.MinPrice))
	logger.Stats("Source", a.cfg.Source)

	finder := engine.NewFinder(u, source, names)
	res, err := finder.FindDeals(ctx, engine.DealParams{
		Origin:           origin,
		MaxJumps:         s.MaxJumps,
		TypeIDs:          types,
		MinPrice:         s.MinPrice,
		BaselineSystem:   baseline,
		MinRouteSecurity: s.MinRouteSecurity,
		Concurrency:      s.Concurrency,
		MaxFailureRatio:  s.MaxFailureRatio,
		Timeout:          s.Timeout,
		PartialOnCancel:  s.PartialOnCancel,
	}, func(msg string) { logger.Info("SCAN", msg) })
	if res == nil {
		return err
	}

	originName, baselineName := u.SystemName(origin), u.SystemName(baseline)
	printDeals(a.out, res, originName, baselineName)

	if s.ExportDir != "" {
		path, xerr := exportJSON(s.ExportDir, res, originName, baselineName, time.Now())
		if xerr != nil {
			return errors.Join(err, xerr)
		}
		logger.Success("EXPORT", path)
	}
	return err
}
