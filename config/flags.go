package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/smabot/internal/domain"
)

// SessionAction what to do with the saved session.
type SessionAction int

const (
	SessionNone SessionAction = iota
	SessionNew
	SessionResume
	SessionClean
)

// Mode evaluation over history or live trading.
type Mode string

const (
	ModeEval Mode = "eval"
	ModeRun  Mode = "run"
)

// Options is everything the command line selects.
type Options struct {
	Config     Config
	ConfigPath string
	Action     SessionAction
	Mode       Mode
	Analyze    bool
	Setup      bool
	Top        int
	CSVPath    string
}

// Parse reads flags from args (without the program name) and the config file they point to.
func Parse(args []string, output io.Writer) (Options, error) {
	fs := flag.NewFlagSet("smabot", flag.ContinueOnError)
	fs.SetOutput(output)

	configPath := fs.String("config", "", "path to yaml config")
	newSession := fs.Bool("new", false, "start a new session")
	resume := fs.Bool("resume", false, "resume the saved session")
	clean := fs.Bool("clean", false, "delete the saved session state and trade journal")
	eval := fs.Bool("eval", false, "replay historical days")
	run := fs.Bool("run", false, "trade live prices")
	pairFlag := fs.String("pair", "", "trade pair, example: BTC_USDT")
	days := fs.Int("days", 0, "number of days to evaluate or run")
	noAnalyze := fs.Bool("no-analyze", false, "do not analyze the journal after evaluation")
	setup := fs.Bool("setup", false, "configure a new session interactively")
	top := fs.Int("top", 10, "number of worst and best windows in the analysis")
	csvPath := fs.String("csv", "", "analysis CSV output, default <storage.dir>/<PAIR>_analysis.csv")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	opts := Options{
		ConfigPath: *configPath,
		Analyze:    !*noAnalyze,
		Setup:      *setup,
		Top:        *top,
		CSVPath:    *csvPath,
	}

	opts.Config = Default()
	if *configPath != "" {
		cfg, err := Load(*configPath)
		if err != nil {
			return Options{}, err
		}
		opts.Config = cfg
	}

	var actions int
	for _, a := range []struct {
		set    bool
		action SessionAction
	}{{*newSession, SessionNew}, {*resume, SessionResume}, {*clean, SessionClean}} {
		if a.set {
			actions++
			opts.Action = a.action
		}
	}
	if actions > 1 {
		return Options{}, errors.New("--new, --resume and --clean are mutually exclusive")
	}

	if *eval && *run {
		return Options{}, errors.New("--eval and --run are mutually exclusive")
	}
	switch {
	case *eval:
		opts.Mode = ModeEval
	case *run:
		opts.Mode = ModeRun
	}

	if opts.Setup {
		return opts, nil
	}
	if opts.Action == SessionNone {
		return Options{}, errors.New("one of --new, --resume or --clean is required")
	}
	if opts.Action != SessionClean && opts.Mode == "" {
		return Options{}, errors.New("a mode (--eval or --run) is required")
	}

	if *pairFlag != "" {
		pair, err := domain.ParsePair(*pairFlag)
		if err != nil {
			return Options{}, fmt.Errorf("invalid --pair provided, --pair=%s: %w", *pairFlag, err)
		}
		opts.Config.Pair = pair
	}
	if *days < 0 {
		return Options{}, errors.Errorf("invalid --days provided, --days=%d", *days)
	}
	if *days > 0 {
		if opts.Mode == ModeRun {
			opts.Config.Run.Days = *days
		} else {
			opts.Config.Eval.Days = *days
		}
	}
	if opts.Top < 1 {
		return Options{}, errors.Errorf("invalid --top provided, --top=%d", opts.Top)
	}

	if err := opts.Config.Validate(); err != nil {
		return Options{}, err
	}

	return opts, nil
}

// Days configured length of the selected mode.
func (o Options) Days() int {
	if o.Mode == ModeRun {
		return o.Config.Run.Days
	}
	return o.Config.Eval.Days
}
