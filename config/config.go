// Package config loads the session configuration from a YAML file and command-line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/smabot/internal/domain"
)

const (
	PlatformBinance = "binance"
	PlatformBybit   = "bybit"

	ReferenceKlines = "klines"
	ReferenceFile   = "file"

	// maxKlineLimit per-request candle limit of the supported exchanges.
	maxKlineLimit = 1000
)

// Config is the validated session configuration.
type Config struct {
	Platform  string
	Pair      domain.Pair
	LogLevel  string
	Windows   Windows
	Policy    domain.Policy
	Reference Reference
	Eval      Eval
	Run       Run
	Storage   Storage
}

type Windows struct {
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
	Step int `yaml:"step"`
}

type Reference struct {
	Source   string        `yaml:"source"`
	Interval string        `yaml:"interval"`
	File     string        `yaml:"file"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

type Eval struct {
	Days     int    `yaml:"days"`
	Interval string `yaml:"interval"`
}

type Run struct {
	Days              int           `yaml:"days"`
	PollPriceInterval time.Duration `yaml:"poll_price_interval"`
}

type Storage struct {
	Dir       string `yaml:"dir"`
	StateFile string `yaml:"state_file"`
}

// ConfigTmp mirrors the YAML layout; decimals and the pair stay strings until validated.
type ConfigTmp struct {
	Platform  string       `yaml:"platform"`
	Pair      string       `yaml:"pair"`
	LogLevel  string       `yaml:"log_level"`
	Windows   Windows      `yaml:"windows"`
	Policy    PolicyTmp    `yaml:"policy"`
	Reference ReferenceTmp `yaml:"reference"`
	Eval      Eval         `yaml:"eval"`
	Run       Run          `yaml:"run"`
	Storage   Storage      `yaml:"storage"`
}

// ReferenceTmp keeps retries as a pointer so an explicit 0 disables retrying.
type ReferenceTmp struct {
	Source   string        `yaml:"source"`
	Interval string        `yaml:"interval"`
	File     string        `yaml:"file"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  *int          `yaml:"retries,omitempty"`
}

type PolicyTmp struct {
	BuyBand      string `yaml:"buy_band,omitempty"`
	SellBand     string `yaml:"sell_band,omitempty"`
	Fee          string `yaml:"fee,omitempty"`
	CooldownDays *int   `yaml:"cooldown_days,omitempty"`
	TradeMode    string `yaml:"trade_mode,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Platform: PlatformBinance,
		Pair:     domain.Pair{From: "BTC", To: "USDT"},
		LogLevel: "info",
		Windows:  Windows{Min: 1, Max: 200, Step: 1},
		Policy:   domain.DefaultPolicy(),
		Reference: Reference{
			Source:   ReferenceKlines,
			Interval: "1d",
			File:     "SMA.txt",
			Timeout:  30 * time.Second,
			Retries:  3,
		},
		Eval:    Eval{Days: 59, Interval: "5m"},
		Run:     Run{Days: 5, PollPriceInterval: 30 * time.Minute},
		Storage: Storage{Dir: "./wal", StateFile: "./wal/session.json"},
	}
}

// Load reads a YAML config file; missing fields take their default values.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	return parseYaml(f)
}

func parseYaml(data []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "decode yaml config")
	}

	return tmp.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Default()

	if c.Platform != "" {
		cfg.Platform = c.Platform
	}
	if c.Pair != "" {
		pair, err := domain.ParsePair(c.Pair)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'pair' param in yaml config: %s, error: %w", c.Pair, err)
		}
		cfg.Pair = pair
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}

	if c.Windows.Min != 0 {
		cfg.Windows.Min = c.Windows.Min
	}
	if c.Windows.Max != 0 {
		cfg.Windows.Max = c.Windows.Max
	}
	if c.Windows.Step != 0 {
		cfg.Windows.Step = c.Windows.Step
	}

	if err := c.Policy.apply(&cfg.Policy); err != nil {
		return Config{}, err
	}

	mergeString(&cfg.Reference.Source, c.Reference.Source)
	mergeString(&cfg.Reference.Interval, c.Reference.Interval)
	mergeString(&cfg.Reference.File, c.Reference.File)
	if c.Reference.Timeout != 0 {
		cfg.Reference.Timeout = c.Reference.Timeout
	}
	if c.Reference.Retries != nil {
		cfg.Reference.Retries = *c.Reference.Retries
	}

	if c.Eval.Days != 0 {
		cfg.Eval.Days = c.Eval.Days
	}
	mergeString(&cfg.Eval.Interval, c.Eval.Interval)

	if c.Run.Days != 0 {
		cfg.Run.Days = c.Run.Days
	}
	if c.Run.PollPriceInterval != 0 {
		cfg.Run.PollPriceInterval = c.Run.PollPriceInterval
	}

	mergeString(&cfg.Storage.Dir, c.Storage.Dir)
	mergeString(&cfg.Storage.StateFile, c.Storage.StateFile)

	return cfg, nil
}

func (p PolicyTmp) apply(policy *domain.Policy) error {
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"buy_band", p.BuyBand, &policy.BuyBand},
		{"sell_band", p.SellBand, &policy.SellBand},
		{"fee", p.Fee, &policy.Fee},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		v, err := decimal.NewFromString(f.value)
		if err != nil {
			return fmt.Errorf("incorrect 'policy.%s' param in yaml config (correct format is 0.05), error: %w", f.name, err)
		}
		*f.dst = v
	}

	if p.CooldownDays != nil {
		policy.CooldownDays = *p.CooldownDays
	}
	if p.TradeMode != "" {
		policy.Mode = domain.TradeMode(p.TradeMode)
	}

	return nil
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks that the configuration can drive a session.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformBinance, PlatformBybit:
	default:
		return errors.Errorf("unsupported platform %q", c.Platform)
	}

	if c.Windows.Min < 1 {
		return errors.Errorf("windows.min must be >= 1, got %d", c.Windows.Min)
	}
	if c.Windows.Max < c.Windows.Min {
		return errors.Errorf("windows.max (%d) must be >= windows.min (%d)", c.Windows.Max, c.Windows.Min)
	}
	if c.Windows.Step < 1 {
		return errors.Errorf("windows.step must be >= 1, got %d", c.Windows.Step)
	}
	if c.Windows.Max > maxKlineLimit {
		return errors.Errorf("windows.max must be <= %d, got %d", maxKlineLimit, c.Windows.Max)
	}

	if err := c.Policy.Validate(); err != nil {
		return errors.Wrap(err, "invalid policy")
	}

	switch c.Reference.Source {
	case ReferenceKlines:
	case ReferenceFile:
		if c.Reference.File == "" {
			return errors.New("reference.file is required for the file source")
		}
	default:
		return errors.Errorf("unsupported reference source %q", c.Reference.Source)
	}
	if c.Reference.Timeout <= 0 {
		return errors.Errorf("reference.timeout must be positive, got %s", c.Reference.Timeout)
	}
	if c.Reference.Retries < 0 {
		return errors.Errorf("reference.retries must be >= 0, got %d", c.Reference.Retries)
	}

	if c.Eval.Days < 1 {
		return errors.Errorf("eval.days must be >= 1, got %d", c.Eval.Days)
	}
	if c.Run.Days < 1 {
		return errors.Errorf("run.days must be >= 1, got %d", c.Run.Days)
	}
	if c.Run.PollPriceInterval <= 0 {
		return errors.Errorf("run.poll_price_interval must be positive, got %s", c.Run.PollPriceInterval)
	}

	if c.Storage.Dir == "" || c.Storage.StateFile == "" {
		return errors.New("storage.dir and storage.state_file are required")
	}

	return nil
}

// Tmp converts the configuration back into its YAML layout.
func (c Config) Tmp() ConfigTmp {
	cooldown := c.Policy.CooldownDays
	retries := c.Reference.Retries
	return ConfigTmp{
		Platform: c.Platform,
		Pair:     c.Pair.String(),
		LogLevel: c.LogLevel,
		Windows:  c.Windows,
		Policy: PolicyTmp{
			BuyBand:      c.Policy.BuyBand.String(),
			SellBand:     c.Policy.SellBand.String(),
			Fee:          c.Policy.Fee.String(),
			CooldownDays: &cooldown,
			TradeMode:    string(c.Policy.Mode),
		},
		Reference: ReferenceTmp{
			Source:   c.Reference.Source,
			Interval: c.Reference.Interval,
			File:     c.Reference.File,
			Timeout:  c.Reference.Timeout,
			Retries:  &retries,
		},
		Eval:    c.Eval,
		Run:     c.Run,
		Storage: c.Storage,
	}
}

// Save writes the configuration as YAML.
func Save(path string, c Config) error {
	data, err := yaml.Marshal(c.Tmp())
	if err != nil {
		return errors.Wrap(err, "encode yaml config")
	}

	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write config %s", path)
}
