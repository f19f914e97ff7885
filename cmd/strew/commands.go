package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/chazu/strew/pkg/config"
	"github.com/chazu/strew/pkg/engine"
	"github.com/chazu/strew/pkg/logging"
	"github.com/chazu/strew/pkg/plan"
	"github.com/chazu/strew/pkg/populate"
)

const ctxKey = "context"

// commandContext returns the context installed by newCLI.
func commandContext(ctx *cli.Context) context.Context {
	if c, ok := ctx.App.Metadata[ctxKey].(context.Context); ok {
		return c
	}
	return context.Background()
}

// RunScript evaluates a script file and writes its instance sets.
func RunScript(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing script file argument")
	}
	source, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}

	res := NewApp().Evaluate(commandContext(ctx), string(source))
	return emit(ctx, res)
}

// SampleConfig populates a TOML job file and writes its instance sets.
func SampleConfig(ctx *cli.Context) error {
	setupLogging(ctx)

	p, err := configPlan(ctx.String("config"))
	if err != nil {
		return err
	}
	res := NewApp().Populate(commandContext(ctx), p)
	return emit(ctx, res)
}

// WriteGrid saves the occlusion grid of one interior job.
func WriteGrid(ctx *cli.Context) error {
	setupLogging(ctx)

	var (
		p   *plan.Plan
		err error
	)
	switch {
	case ctx.String("config") != "" && ctx.String("script") != "":
		return errors.New("use either --config or --script")
	case ctx.String("config") != "":
		p, err = configPlan(ctx.String("config"))
	case ctx.String("script") != "":
		p, err = scriptPlan(ctx.String("script"))
	default:
		return errors.New("missing --config or --script")
	}
	if err != nil {
		return err
	}

	name := ctx.String("job")
	j := p.Job(name)
	if j == nil {
		return fmt.Errorf("no job named %q", name)
	}
	if r := plan.ValidateAll(p); !r.OK() {
		return fmt.Errorf("%w: %v", populate.ErrInvalidPlan, r.Errors[0])
	}

	g, err := populate.InteriorGrid(commandContext(ctx), p, j)
	if err != nil {
		return err
	}

	out := ctx.String("out")
	fp, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := g.WriteTIFF(fp); err != nil {
		fp.Close()
		return err
	}
	logging.Logger().Info("grid written", "job", name, "file", out, "width", g.Width(), "height", g.Height())
	return fp.Close()
}

func configPlan(path string) (*plan.Plan, error) {
	if path == "" {
		return nil, errors.New("missing --config file")
	}
	f, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Plan()
}

func scriptPlan(path string) (*plan.Plan, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, evalErrs, err := engine.NewEngine().Evaluate(string(source))
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		return nil, evalErrs[0]
	}
	return p, nil
}

// emit writes res as JSON and reports its errors. The JSON is written even
// when the run failed so callers can read the error list.
func emit(ctx *cli.Context, res Result) error {
	if out := ctx.String("out"); out != "" {
		fp, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := writeAndClose(fp, res); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	} else if err := writeJSON(ctx.App.Writer, res); err != nil {
		return err
	}

	if ctx.Bool("stats") {
		writeStats(ctx.App.ErrWriter, res)
	}
	for _, warn := range res.Warnings {
		logging.Logger().Warn(warn.Message, "subject", warn.Subject, "line", warn.Line)
	}
	if !res.OK() {
		return fmt.Errorf("%d errors, first: %s", len(res.Errors), res.Errors[0].Message)
	}
	return nil
}

func writeJSON(w io.Writer, res Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// writeAndClose always closes wc and reports the first failure.
func writeAndClose(wc io.WriteCloser, res Result) error {
	if err := writeJSON(wc, res); err != nil {
		wc.Close()
		return err
	}
	return wc.Close()
}

func writeStats(w io.Writer, res Result) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Job", "Curve", "Mode", "Positions", "Excluded"})
	total := 0
	for _, s := range res.Sets {
		table.Append([]string{
			s.Job,
			s.Curve,
			s.Mode,
			fmt.Sprintf("%d", s.Count()),
			fmt.Sprintf("%d", s.Excluded),
		})
		total += s.Count()
	}
	table.SetFooter([]string{"", "", "TOTAL", fmt.Sprintf("%d", total), ""})
	table.Render()
	fmt.Fprint(w, buf.String())
}
