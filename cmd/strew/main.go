// Command strew scatters instances over and along curves. Plans come from a
// Lisp script or a TOML job file; positions are written as JSON.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli"
)

func newCLI(ctx context.Context) *cli.App {
	app := cli.NewApp()
	app.Name = "strew"
	app.Usage = "place instances inside and along curves"
	app.Version = "0.1.0"
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	app.Metadata = map[string]interface{}{ctxKey: ctx}
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}

	outFlag := cli.StringFlag{
		Name:  "out, o",
		Usage: "write JSON positions to this file instead of stdout",
	}
	statsFlag := cli.BoolFlag{
		Name:  "stats",
		Usage: "print a per-job summary table to stderr",
	}

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "evaluate a strew script and populate its plan",
			Description: `
Evaluate a Lisp script that declares curves with defcurve and jobs with
scatter and exclude, then sample every job in declaration order.`,
			ArgsUsage: "script.strew",
			Flags:     []cli.Flag{outFlag, statsFlag},
			Action:    RunScript,
		},
		{
			Name:  "sample",
			Usage: "populate the plan of a TOML job file",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "TOML job file",
				},
				outFlag,
				statsFlag,
			},
			Action: SampleConfig,
		},
		{
			Name:  "grid",
			Usage: "write the occlusion grid of an interior job as a TIFF",
			Description: `
Build the inclusion grid of one interior job and save it as a 16-bit
grayscale TIFF. White cells allow placement, black cells block it.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "TOML job file",
				},
				cli.StringFlag{
					Name:  "script, s",
					Usage: "strew script, instead of a job file",
				},
				cli.StringFlag{
					Name:  "job, j",
					Usage: "name of the interior job",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "grid.tiff",
					Usage: "image filename",
				},
			},
			Action: WriteGrid,
		},
	}
	return app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newCLI(ctx).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "strew: %v\n", err)
		stop()
		os.Exit(1)
	}
}
