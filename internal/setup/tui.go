// Package setup runs the interactive wizard that prepares a new session config.
package setup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/vadiminshakov/smabot/config"
	"github.com/vadiminshakov/smabot/internal/domain"
)

const title = "SMABOT SESSION WIZARD"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collected by the wizard, all as entered.
type Answers struct {
	Platform     string
	Pair         string
	Mode         string
	Days         string
	MinWindow    string
	MaxWindow    string
	Step         string
	TradeMode    string
	PollInterval string
}

// Result of a completed wizard.
type Result struct {
	Config config.Config
	Mode   config.Mode
}

func defaultAnswers(base config.Config) Answers {
	return Answers{
		Platform:     base.Platform,
		Pair:         base.Pair.String(),
		Mode:         string(config.ModeEval),
		Days:         strconv.Itoa(base.Eval.Days),
		MinWindow:    strconv.Itoa(base.Windows.Min),
		MaxWindow:    strconv.Itoa(base.Windows.Max),
		Step:         strconv.Itoa(base.Windows.Step),
		TradeMode:    string(base.Policy.Mode),
		PollInterval: base.Run.PollPriceInterval.String(),
	}
}

func step(name string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render(name))
}

// RunTUI launches the wizard on top of base and saves the result to path.
func RunTUI(base config.Config, path string) (Result, error) {
	a := defaultAnswers(base)
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Pick a market and a window range to evaluate.\n"))

	fmt.Println(stepStyle.Render("STEP 1: MARKET"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
				).
				Value(&a.Platform),
			huh.NewInput().
				Title("Trading Pair").
				Description("BASE_QUOTE, e.g. BTC_USDT").
				Value(&a.Pair).
				Validate(validatePair),
		),
	).Run()
	if err != nil {
		return Result{}, err
	}

	step("STEP 2: SESSION")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Evaluate history or trade live prices?").
				Options(
					huh.NewOption("Evaluate past days", string(config.ModeEval)),
					huh.NewOption("Run on live prices", string(config.ModeRun)),
				).
				Value(&a.Mode),
			huh.NewInput().
				Title("Days").
				Description("Number of trading days in the session").
				Value(&a.Days).
				Validate(validatePositiveInt),
		),
	).Run()
	if err != nil {
		return Result{}, err
	}

	step("STEP 3: STRATEGY")
	fields := []huh.Field{
		huh.NewInput().Title("Smallest SMA window").Value(&a.MinWindow).Validate(validatePositiveInt),
		huh.NewInput().Title("Largest SMA window").Value(&a.MaxWindow).Validate(validatePositiveInt),
		huh.NewInput().Title("Window step").Value(&a.Step).Validate(validatePositiveInt),
		huh.NewSelect[string]().
			Title("Trade direction").
			Options(
				huh.NewOption("Momentum (buy above the SMA)", string(domain.TradeModeMomentum)),
				huh.NewOption("Mean reversion (buy below the SMA)", string(domain.TradeModeMeanReversion)),
			).
			Value(&a.TradeMode),
	}
	if a.Mode == string(config.ModeRun) {
		fields = append(fields, huh.NewInput().
			Title("Poll Price Interval").
			Description("Duration string (e.g. 30s, 1m, 30m)").
			Value(&a.PollInterval).
			Validate(validateDuration))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return Result{}, err
	}

	res, err := a.Build(base)
	if err != nil {
		return Result{}, err
	}

	step("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary(res)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return Result{}, err
	}
	if !confirm {
		return Result{}, fmt.Errorf("setup cancelled by user")
	}

	if err := config.Save(path, res.Config); err != nil {
		return Result{}, fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting session...", path)))
	return res, nil
}

// Build applies the answers on top of base and validates the result.
func (a Answers) Build(base config.Config) (Result, error) {
	cfg := base
	cfg.Platform = a.Platform

	pair, err := domain.ParsePair(a.Pair)
	if err != nil {
		return Result{}, err
	}
	cfg.Pair = pair

	mode := config.Mode(a.Mode)
	days, err := strconv.Atoi(a.Days)
	if err != nil {
		return Result{}, fmt.Errorf("days: %w", err)
	}
	switch mode {
	case config.ModeEval:
		cfg.Eval.Days = days
	case config.ModeRun:
		cfg.Run.Days = days
		poll, err := time.ParseDuration(a.PollInterval)
		if err != nil {
			return Result{}, fmt.Errorf("poll interval: %w", err)
		}
		cfg.Run.PollPriceInterval = poll
	default:
		return Result{}, fmt.Errorf("unknown mode %q", a.Mode)
	}

	for _, f := range []struct {
		name string
		v    string
		dst  *int
	}{
		{"min window", a.MinWindow, &cfg.Windows.Min},
		{"max window", a.MaxWindow, &cfg.Windows.Max},
		{"window step", a.Step, &cfg.Windows.Step},
	} {
		n, err := strconv.Atoi(f.v)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = n
	}
	cfg.Policy.Mode = domain.TradeMode(a.TradeMode)

	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	return Result{Config: cfg, Mode: mode}, nil
}

func summary(r Result) string {
	days := r.Config.Eval.Days
	if r.Mode == config.ModeRun {
		days = r.Config.Run.Days
	}
	return fmt.Sprintf(
		"Platform: %s\nPair: %s\nMode: %s\nDays: %d\nWindows: %d..%d step %d\nDirection: %s\n",
		r.Config.Platform, r.Config.Pair, r.Mode, days,
		r.Config.Windows.Min, r.Config.Windows.Max, r.Config.Windows.Step, r.Config.Policy.Mode,
	)
}

func validatePair(s string) error {
	if s == "" {
		return fmt.Errorf("pair cannot be empty")
	}
	if _, err := domain.ParsePair(s); err != nil {
		return fmt.Errorf("invalid format: must be BASE_QUOTE (e.g. BTC_USDT)")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
