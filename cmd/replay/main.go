package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"fx-triangle-watch/internal/app"
	"fx-triangle-watch/internal/config"
	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/replay"
	"fx-triangle-watch/pkg/logging"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/xhit/go-str2duration/v2"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	openFileFunc   = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	exitFunc       = os.Exit
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		logrus.WithError(err).Error("replay failed")
		exitFunc(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "replay",
		Usage:     "replay recorded quotes through the triangle monitor",
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "replay a CSV of time,exchange,symbol,bid,ask rows",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "CSV file to replay", Required: true},
					&cli.StringFlag{Name: "legs", Usage: "three legs A,B,C (defaults to TRIANGLE_LEGS)"},
					&cli.StringSliceFlag{Name: "venue", Usage: "allowed venue, repeatable (defaults to ALLOWED_VENUES)"},
					&cli.Float64Flag{Name: "threshold", Usage: "upper rate threshold (defaults to TRIANGLE_THRESHOLD)"},
					&cli.Float64Flag{Name: "threshold-low", Usage: "lower rate threshold for symmetric mode"},
					&cli.StringFlag{Name: "window", Usage: "signal validity, e.g. 5s or 1m30s (defaults to SIGNAL_VALIDITY)"},
					&cli.BoolFlag{Name: "symmetric", Usage: "also emit signals below the lower threshold"},
					&cli.BoolFlag{Name: "spike", Usage: "enable the spike filter"},
				},
				Action: runReplay,
			},
		},
	}
}

func runReplay(c *cli.Context) error {
	if err := loadEnvFunc(); err != nil {
		logrus.Debug("no .env file loaded")
	}
	cfg, err := loadConfigFunc()
	if err != nil {
		return err
	}
	logging.New(cfg.LogLevel, c.App.ErrWriter)

	if err := applyFlags(c, cfg); err != nil {
		return err
	}

	chain, err := app.BuildFilterChain(cfg)
	if err != nil {
		return err
	}

	f, err := openFileFunc(c.String("file"))
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	ticks, err := replay.ReadTicks(f)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"ticks":    len(ticks),
		"triangle": cfg.Triangle.String(),
	}).Info("replay starting")

	res, err := replay.Run(c.Context, cfg.MonitorConfig(), chain, ticks)
	if err != nil {
		return err
	}
	replay.WriteReport(c.App.Writer, res)
	return nil
}

func applyFlags(c *cli.Context, cfg *config.Config) error {
	if raw := c.String("legs"); raw != "" {
		legs := strings.Split(raw, ",")
		if len(legs) != 3 {
			return fmt.Errorf("--legs needs exactly three symbols, got %q", raw)
		}
		cfg.Triangle = domain.Triangle{
			LegA: strings.ToUpper(strings.TrimSpace(legs[0])),
			LegB: strings.ToUpper(strings.TrimSpace(legs[1])),
			LegC: strings.ToUpper(strings.TrimSpace(legs[2])),
		}
	}
	if venues := c.StringSlice("venue"); len(venues) > 0 {
		cfg.AllowedVenues = venues
	}
	if c.IsSet("threshold") {
		cfg.ThresholdHigh = c.Float64("threshold")
	}
	if c.IsSet("threshold-low") {
		cfg.ThresholdLow = c.Float64("threshold-low")
	}
	if raw := c.String("window"); raw != "" {
		d, err := str2duration.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("--window: %w", err)
		}
		cfg.ValidFor = d
	}
	if c.IsSet("symmetric") {
		cfg.Symmetric = c.Bool("symmetric")
	}
	if c.IsSet("spike") {
		cfg.SpikeEnabled = c.Bool("spike")
	}
	return nil
}
