// Package config defines all configuration for the temperature market scanner.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via KW_* and KALSHI_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Kalshi    KalshiConfig    `mapstructure:"kalshi"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Fees      FeeConfig       `mapstructure:"fees"`
	Model     ModelConfig     `mapstructure:"model"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Stability StabilityConfig `mapstructure:"stability"`
	Spike     SpikeConfig     `mapstructure:"spike"`
	Email     EmailConfig     `mapstructure:"email"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// KalshiConfig holds venue API access. The private key signs read-only
// requests; no order-placing credential is ever configured.
type KalshiConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKeyID       string        `mapstructure:"api_key_id"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
}

// WeatherConfig holds NWS data source access. UserAgent is required by
// api.weather.gov policy and should identify the app and a contact address.
type WeatherConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
}

// ScanConfig controls candidate discovery and bucketing windows. Prices are
// cents on the NO side.
type ScanConfig struct {
	WindowMinCents  int    `mapstructure:"window_min_cents"`  // scan window lower bound (incl.)
	WindowMaxCents  int    `mapstructure:"window_max_cents"`  // scan window upper bound (incl.)
	PrimaryMinCents int    `mapstructure:"primary_min_cents"` // PRIMARY/TIGHT band lower bound
	PrimaryMaxCents int    `mapstructure:"primary_max_cents"` // PRIMARY/TIGHT band upper bound
	MinRoomCents    int    `mapstructure:"min_room_cents"`    // bid room needed for PRIMARY
	MaxPrimary      int    `mapstructure:"max_primary"`       // pick cap, overflow demotes to TIGHT
	TargetDate      string `mapstructure:"target_date"`       // YYYY-MM-DD override, empty = today ET
}

// FeeConfig holds venue fee rates per contract.
type FeeConfig struct {
	TakerRate float64 `mapstructure:"taker_rate"`
	MakerRate float64 `mapstructure:"maker_rate"`
}

// ModelConfig tunes the probability modeler.
type ModelConfig struct {
	LockInBuffer    time.Duration `mapstructure:"lock_in_buffer"`    // grace past window end before LOCKING
	LockInThreshold float64       `mapstructure:"lock_in_threshold"` // P(new extreme) below this locks
}

// RiskConfig sets sizing and concentration limits.
//
//   - BankrollUSD: total budget split across picks before multipliers.
//   - MaxPerCorrelationGroup: cap on picks sharing a weather region.
//   - MaxPerMetroCluster: cap on picks sharing a metro area.
//   - SpreadMaxCents: widest acceptable spread without an edge exception.
//   - WideExceptionEdgePct: min model edge to tolerate a wide spread.
type RiskConfig struct {
	BankrollUSD            float64 `mapstructure:"bankroll_usd"`
	MaxPerCorrelationGroup int     `mapstructure:"max_per_correlation_group"`
	MaxPerMetroCluster     int     `mapstructure:"max_per_metro_cluster"`
	SpreadMaxCents         int     `mapstructure:"spread_max_cents"`
	WideExceptionEdgePct   float64 `mapstructure:"wide_exception_edge_pct"`
}

// StabilityConfig damps bucket churn between consecutive runs.
type StabilityConfig struct {
	PriceMoveCents int `mapstructure:"price_move_cents"` // min ask move to allow a bucket change
}

// SpikeConfig tunes the intraday spike monitor.
type SpikeConfig struct {
	ThresholdCents int           `mapstructure:"threshold_cents"`
	Window         time.Duration `mapstructure:"window"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BurstCount     int           `mapstructure:"burst_count"`
	BurstInterval  time.Duration `mapstructure:"burst_interval"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	StartHour      int           `mapstructure:"start_hour"` // ET, inclusive
	EndHour        int           `mapstructure:"end_hour"`   // ET, exclusive
	Cities         []string      `mapstructure:"cities"`
}

// EmailConfig controls report and alert delivery. Delivery is best-effort;
// a failed send never fails the run.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// OutputConfig sets where slate artifacts are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration, valid without any YAML file
// once credentials are supplied.
func Default() *Config {
	return &Config{
		Kalshi: KalshiConfig{
			BaseURL:        "https://api.elections.kalshi.com",
			Timeout:        15 * time.Second,
			RequestsPerSec: 5,
		},
		Weather: WeatherConfig{
			UserAgent:      "(kalshi-weather-scanner, ops@example.com)",
			Timeout:        20 * time.Second,
			RequestsPerSec: 2,
		},
		Scan: ScanConfig{
			WindowMinCents:  88,
			WindowMaxCents:  95,
			PrimaryMinCents: 90,
			PrimaryMaxCents: 93,
			MinRoomCents:    2,
			MaxPrimary:      10,
		},
		Fees: FeeConfig{TakerRate: 0.07, MakerRate: 0.0175},
		Model: ModelConfig{
			LockInBuffer:    30 * time.Minute,
			LockInThreshold: 0.05,
		},
		Risk: RiskConfig{
			BankrollUSD:            42.00,
			MaxPerCorrelationGroup: 3,
			MaxPerMetroCluster:     2,
			SpreadMaxCents:         6,
			WideExceptionEdgePct:   3.0,
		},
		Stability: StabilityConfig{PriceMoveCents: 2},
		Spike: SpikeConfig{
			ThresholdCents: 15,
			Window:         420 * time.Second,
			PollInterval:   30 * time.Second,
			BurstCount:     5,
			BurstInterval:  60 * time.Second,
			Cooldown:       600 * time.Second,
			StartHour:      8,
			EndHour:        23,
			Cities: []string{
				"New York", "Chicago", "Miami", "Austin", "Los Angeles", "Denver",
				"Philadelphia", "Houston", "Dallas", "Phoenix", "Seattle", "Atlanta",
			},
		},
		Email:   EmailConfig{SMTPPort: 587},
		Output:  OutputConfig{Dir: "data/slates"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads config from a YAML file with env var overrides. A missing file
// is not an error; defaults plus environment are enough to run.
// Sensitive fields use env vars: KALSHI_API_KEY_ID, KALSHI_PRIVATE_KEY_PATH,
// KW_EMAIL_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("KW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if id := os.Getenv("KALSHI_API_KEY_ID"); id != "" {
		cfg.Kalshi.APIKeyID = id
	}
	if keyPath := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); keyPath != "" {
		cfg.Kalshi.PrivateKeyPath = keyPath
	}
	if pass := os.Getenv("KW_EMAIL_PASSWORD"); pass != "" {
		cfg.Email.Password = pass
	}
	if to := os.Getenv("KW_EMAIL_TO"); to != "" {
		cfg.Email.To = to
	}

	return cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Kalshi.BaseURL == "" {
		return fmt.Errorf("kalshi.base_url is required")
	}
	if c.Kalshi.APIKeyID == "" {
		return fmt.Errorf("kalshi.api_key_id is required (set KALSHI_API_KEY_ID)")
	}
	if c.Kalshi.PrivateKeyPath == "" {
		return fmt.Errorf("kalshi.private_key_path is required (set KALSHI_PRIVATE_KEY_PATH)")
	}
	if c.Kalshi.RequestsPerSec <= 0 {
		return fmt.Errorf("kalshi.requests_per_sec must be > 0")
	}
	if c.Scan.WindowMinCents < 1 || c.Scan.WindowMaxCents > 99 ||
		c.Scan.WindowMinCents > c.Scan.WindowMaxCents {
		return fmt.Errorf("scan window [%d,%d] must sit inside [1,99]",
			c.Scan.WindowMinCents, c.Scan.WindowMaxCents)
	}
	if c.Scan.PrimaryMinCents < c.Scan.WindowMinCents ||
		c.Scan.PrimaryMaxCents > c.Scan.WindowMaxCents {
		return fmt.Errorf("primary band [%d,%d] must sit inside the scan window",
			c.Scan.PrimaryMinCents, c.Scan.PrimaryMaxCents)
	}
	if c.Scan.MaxPrimary <= 0 {
		return fmt.Errorf("scan.max_primary must be > 0")
	}
	if c.Fees.TakerRate <= 0 || c.Fees.MakerRate <= 0 {
		return fmt.Errorf("fee rates must be > 0")
	}
	if c.Risk.BankrollUSD <= 0 {
		return fmt.Errorf("risk.bankroll_usd must be > 0")
	}
	if c.Spike.ThresholdCents <= 0 {
		return fmt.Errorf("spike.threshold_cents must be > 0")
	}
	if c.Spike.StartHour < 0 || c.Spike.EndHour > 24 || c.Spike.StartHour >= c.Spike.EndHour {
		return fmt.Errorf("spike operating hours [%d,%d) are invalid", c.Spike.StartHour, c.Spike.EndHour)
	}
	if c.Email.Enabled {
		if c.Email.SMTPHost == "" || c.Email.From == "" || c.Email.To == "" {
			return fmt.Errorf("email.smtp_host, email.from and email.to are required when email.enabled")
		}
	}
	return nil
}
