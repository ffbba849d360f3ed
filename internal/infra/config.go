package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/pkg/quant"
)

// SecurityConfig describes one tradable security of the flea market.
// Payoffs is a comma separated list of state payoffs in cents.
type SecurityConfig struct {
	ID            int    `yaml:"id"`
	Item          string `yaml:"item"`
	Payoffs       string `yaml:"payoffs"`
	MinPriceCents int64  `yaml:"min_price_cents"`
	MaxPriceCents int64  `yaml:"max_price_cents"`
	TickCents     int64  `yaml:"tick_cents"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode  string `yaml:"mode"`
		Paper struct {
			InitialCashCents int64 `yaml:"initial_cash_cents"`
			InitialUnits     int64 `yaml:"initial_units"`
		} `yaml:"paper"`
	} `yaml:"trading"`

	Exchange struct {
		WSURL         string `yaml:"ws_url"`
		Account       string `yaml:"account"`
		Email         string `yaml:"email"`
		MarketplaceID int    `yaml:"marketplace_id"`
	} `yaml:"exchange"`

	Session struct {
		DurationMinutes      int     `yaml:"duration_minutes"`
		MakerStartFraction   float64 `yaml:"maker_start_fraction"`
		OrderCooldownMS      int     `yaml:"order_cooldown_ms"`
		IdleCheckIntervalSec int     `yaml:"idle_check_interval_sec"`
		IdleOrderMaxAgeSec   int     `yaml:"idle_order_max_age_sec"`
	} `yaml:"session"`

	Risk struct {
		Penalty float64 `yaml:"penalty"`
	} `yaml:"risk"`

	Securities []SecurityConfig `yaml:"securities"`

	Storage struct {
		Dir string `yaml:"dir"`
	} `yaml:"storage"`

	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"logging"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Trading.Mode == "" {
		c.Trading.Mode = "PAPER"
	}
	if c.Trading.Paper.InitialCashCents == 0 {
		c.Trading.Paper.InitialCashCents = 100000
	}
	if c.Trading.Paper.InitialUnits == 0 {
		c.Trading.Paper.InitialUnits = 10
	}
	if c.Session.DurationMinutes == 0 {
		c.Session.DurationMinutes = 20
	}
	if c.Session.MakerStartFraction == 0 {
		c.Session.MakerStartFraction = 0.75
	}
	if c.Session.OrderCooldownMS == 0 {
		c.Session.OrderCooldownMS = 1000
	}
	if c.Session.IdleCheckIntervalSec == 0 {
		c.Session.IdleCheckIntervalSec = 10
	}
	if c.Session.IdleOrderMaxAgeSec == 0 {
		c.Session.IdleOrderMaxAgeSec = 30
	}
	if c.Risk.Penalty == 0 {
		c.Risk.Penalty = 0.007
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "console"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Trading.Mode {
	case "PAPER", "LIVE":
	default:
		return fmt.Errorf("invalid trading mode: %s", c.Trading.Mode)
	}

	if c.Trading.Mode == "LIVE" {
		if c.Exchange.WSURL == "" || (!hasPrefix(c.Exchange.WSURL, "ws://") && !hasPrefix(c.Exchange.WSURL, "wss://")) {
			return fmt.Errorf("invalid exchange WS URL: %s", c.Exchange.WSURL)
		}
		if c.Exchange.Account == "" {
			return fmt.Errorf("exchange account is required in LIVE mode")
		}
	}

	if len(c.Securities) == 0 {
		return fmt.Errorf("at least one security is required")
	}
	for _, sec := range c.Securities {
		if sec.Item == "" {
			return fmt.Errorf("security %d: item name is required", sec.ID)
		}
		if sec.Payoffs == "" {
			return fmt.Errorf("security %d: payoffs are required", sec.ID)
		}
		if sec.TickCents <= 0 {
			return fmt.Errorf("security %d: tick must be positive", sec.ID)
		}
		if sec.MinPriceCents < 0 || sec.MaxPriceCents <= sec.MinPriceCents {
			return fmt.Errorf("security %d: invalid price bounds [%d, %d]",
				sec.ID, sec.MinPriceCents, sec.MaxPriceCents)
		}
	}

	if c.Session.MakerStartFraction < 0 || c.Session.MakerStartFraction > 1 {
		return fmt.Errorf("maker start fraction must be within [0, 1]")
	}
	if c.Risk.Penalty < 0 {
		return fmt.Errorf("risk penalty must not be negative")
	}

	return nil
}

// BuildSecurities materializes the configured securities into domain
// objects, parsing each payoff vector.
func (c *Config) BuildSecurities() (map[int]domain.Security, error) {
	securities := make(map[int]domain.Security, len(c.Securities))
	for _, sc := range c.Securities {
		payoffs, err := domain.ParsePayoffs(sc.Payoffs)
		if err != nil {
			return nil, fmt.Errorf("security %d (%s): %w", sc.ID, sc.Item, err)
		}
		if _, dup := securities[sc.ID]; dup {
			return nil, fmt.Errorf("duplicate security id %d", sc.ID)
		}
		securities[sc.ID] = domain.Security{
			ID:       sc.ID,
			Item:     sc.Item,
			Payoffs:  payoffs,
			MinPrice: quant.Cents(sc.MinPriceCents),
			MaxPrice: quant.Cents(sc.MaxPriceCents),
			Tick:     quant.Cents(sc.TickCents),
		}
	}
	return securities, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
// 환경 변수는 설정 파일보다 우선합니다 (보안 강화).
func overrideWithEnv(cfg *Config) {
	if account := os.Getenv("CAPM_ACCOUNT"); account != "" {
		cfg.Exchange.Account = account
	}
	if email := os.Getenv("CAPM_EMAIL"); email != "" {
		cfg.Exchange.Email = email
	}
	if mode := os.Getenv("CAPM_TRADING_MODE"); mode != "" {
		cfg.Trading.Mode = mode
	}
}
