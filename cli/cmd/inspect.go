package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rpbridge/cli/reader"
	"github.com/pithecene-io/rpbridge/cli/render"
	"github.com/pithecene-io/rpbridge/cli/tui"
	"github.com/pithecene-io/rpbridge/config"
	"github.com/pithecene-io/rpbridge/reporting/archive"
)

// InspectCommand returns the inspect command with subcommands.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a run report or an archived launch",
		Subcommands: []*cli.Command{
			inspectReportCommand(),
			inspectLaunchCommand(),
		},
	}
}

func inspectReportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Inspect a run report written by run --report",
		ArgsUsage: "<file|->",
		Flags: append(ReadOnlyFlags(), &cli.BoolFlag{
			Name:  "metrics",
			Usage: "Show the metrics snapshot instead of the summary",
		}),
		Action: inspectReportAction,
	}
}

func inspectReportAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("report file required", 1)
	}

	report, err := reader.ReadReport(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewReport, reader.InspectReportDetail(report))
	}
	if c.Bool("metrics") {
		return r.Render(reader.ReportMetrics(report))
	}
	return r.Render(reader.InspectReport(report))
}

func inspectLaunchCommand() *cli.Command {
	return &cli.Command{
		Name:      "launch",
		Usage:     "List the records of a launch written by the archive transport",
		ArgsUsage: "<launch-id>",
		Flags: append([]cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "path",
				Usage: "Archive root on the local filesystem (overrides archive settings in --config)",
			},
		}, ReadOnlyFlags()...),
		Action: inspectLaunchAction,
	}
}

func inspectLaunchAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("launch-id required", 1)
	}
	launchID := c.Args().First()

	cfg, err := config.Resolve(c.String("config"), os.LookupEnv)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if c.IsSet("path") {
		cfg.Archive.Backend = config.BackendFS
		cfg.Archive.Path = c.String("path")
	}

	ds, err := openArchive(c.Context, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	rows, err := reader.LaunchRecords(c.Context, ds, launchID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewLaunch, rows)
	}
	return r.Render(rows)
}

// openArchive opens the archive dataset for reading.
func openArchive(ctx context.Context, cfg *config.Config) (lode.Dataset, error) {
	dataset := cfg.Archive.Dataset
	if dataset == "" {
		dataset = archive.DefaultDataset
	}

	var factory lode.StoreFactory
	switch cfg.Archive.Backend {
	case config.BackendFS:
		if cfg.Archive.Path == "" {
			return nil, fmt.Errorf("archive path required (--path or archive.path)")
		}
		factory = lode.NewFSFactory(cfg.Archive.Path)
	case config.BackendS3:
		f, err := archive.NewS3Factory(ctx, s3Config(cfg))
		if err != nil {
			return nil, err
		}
		factory = f
	default:
		return nil, fmt.Errorf("unknown archive backend: %s (must be s3 or fs)", cfg.Archive.Backend)
	}

	return archive.NewDataset(dataset, factory)
}
