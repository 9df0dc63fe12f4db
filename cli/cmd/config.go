package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rpbridge/cli/render"
	"github.com/pithecene-io/rpbridge/config"
)

// ConfigCommand returns the config command with subcommands.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or check the effective configuration",
		Subcommands: []*cli.Command{
			configShowCommand(),
			configCheckCommand(),
		},
	}
}

func configShowCommand() *cli.Command {
	return &cli.Command{
		Name:   "show",
		Usage:  "Print the effective configuration (file, then environment, then defaults) with secrets redacted",
		Flags:  append([]cli.Flag{ConfigFlag}, ReadOnlyFlags()...),
		Action: configShowAction,
	}
}

func configShowAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for config show", 1)
	}
	cfg, err := config.Resolve(c.String("config"), os.LookupEnv)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(cfg.Redacted())
}

func configCheckCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "Validate the effective configuration; exits 3 listing every problem",
		Flags:  []cli.Flag{ConfigFlag},
		Action: configCheckAction,
	}
}

func configCheckAction(c *cli.Context) error {
	cfg, err := config.Resolve(c.String("config"), os.LookupEnv)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	_, err = c.App.Writer.Write([]byte("configuration ok\n"))
	return err
}
