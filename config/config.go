/*
Package config loads server and engine settings.

PRECEDENCE:
  environment (ATTENDANCE_*) > config file (YAML) > defaults

  Keys are dotted paths; the environment form upper-cases them and replaces
  dots with underscores: engine.company_id -> ATTENDANCE_ENGINE_COMPANY_ID.

SECTIONS:
  server:    HTTP port, CORS origins, timeouts
  db:        SQLite path (":memory:" for throwaway runs)
  log:       zap level and format (json | console)
  engine:    Company scope and pipeline switches
  synthesis: Repair bound, generator ceiling, optional remote generator
  scheduler: Anomaly scan cron
  payroll:   Wage and multipliers for pay columns in exports
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/payroll"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "ATTENDANCE"

// Config is the whole application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Payroll   PayrollConfig   `mapstructure:"payroll"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EngineConfig struct {
	CompanyID            string `mapstructure:"company_id"`
	SanityCeilingMinutes int    `mapstructure:"sanity_ceiling_minutes"`
	FillNonWorkingDays   bool   `mapstructure:"fill_non_working_days"`
	DropInactiveUsers    bool   `mapstructure:"drop_inactive_users"`
	StrictPolicy         bool   `mapstructure:"strict_policy"`
}

type SynthesisConfig struct {
	MaxRepairRounds     int           `mapstructure:"max_repair_rounds"`
	DailyCeilingMinutes int           `mapstructure:"daily_ceiling_minutes"`
	RemoteURL           string        `mapstructure:"remote_url"`
	RemoteTimeout       time.Duration `mapstructure:"remote_timeout"`
}

type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	AnomalyScanCron string `mapstructure:"anomaly_scan_cron"`
}

// PayrollConfig keeps money as strings so decimals never pass through float.
type PayrollConfig struct {
	BaseWage           string `mapstructure:"base_wage"`
	OvertimeMultiplier string `mapstructure:"overtime_multiplier"`
	SpecialMultiplier  string `mapstructure:"special_multiplier"`
}

// Rates parses the payroll section. An empty base wage means no pay columns.
func (c PayrollConfig) Rates() (*payroll.Rates, error) {
	if strings.TrimSpace(c.BaseWage) == "" {
		return nil, nil
	}
	base, err := decimal.NewFromString(c.BaseWage)
	if err != nil {
		return nil, fmt.Errorf("payroll.base_wage: %w", err)
	}
	rates := payroll.DefaultRates(base)
	if c.OvertimeMultiplier != "" {
		if rates.OvertimeMultiplier, err = decimal.NewFromString(c.OvertimeMultiplier); err != nil {
			return nil, fmt.Errorf("payroll.overtime_multiplier: %w", err)
		}
	}
	if c.SpecialMultiplier != "" {
		if rates.SpecialMultiplier, err = decimal.NewFromString(c.SpecialMultiplier); err != nil {
			return nil, fmt.Errorf("payroll.special_multiplier: %w", err)
		}
	}
	return &rates, nil
}

// EngineOptions maps the engine and synthesis sections onto service options.
func (c *Config) EngineOptions() attendance.Options {
	return attendance.Options{
		SanityCeilingMinutes: c.Engine.SanityCeilingMinutes,
		FillNonWorkingDays:   c.Engine.FillNonWorkingDays,
		DropInactiveUsers:    c.Engine.DropInactiveUsers,
		StrictPolicy:         c.Engine.StrictPolicy,
		MaxRepairRounds:      c.Synthesis.MaxRepairRounds,
	}
}

// Load reads path (optional) on top of the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("db.path", "./data/attendance.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.company_id", "default")
	v.SetDefault("engine.sanity_ceiling_minutes", attendance.DefaultSanityCeilingMinutes)
	v.SetDefault("engine.fill_non_working_days", false)
	v.SetDefault("engine.drop_inactive_users", false)
	v.SetDefault("engine.strict_policy", false)

	v.SetDefault("synthesis.max_repair_rounds", attendance.DefaultMaxRepairRounds)
	v.SetDefault("synthesis.daily_ceiling_minutes", attendance.DefaultDailyCeilingMinutes)
	v.SetDefault("synthesis.remote_url", "")
	v.SetDefault("synthesis.remote_timeout", "30s")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.anomaly_scan_cron", "0 2 * * *")

	v.SetDefault("payroll.base_wage", "")
	v.SetDefault("payroll.overtime_multiplier", "1.5")
	v.SetDefault("payroll.special_multiplier", "1.5")
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be within 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("config: db.path is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	if strings.TrimSpace(c.Engine.CompanyID) == "" {
		return errors.New("config: engine.company_id is required")
	}
	if c.Engine.SanityCeilingMinutes <= 0 {
		return fmt.Errorf("config: engine.sanity_ceiling_minutes must be positive, got %d", c.Engine.SanityCeilingMinutes)
	}
	if c.Synthesis.MaxRepairRounds < 0 {
		return fmt.Errorf("config: synthesis.max_repair_rounds must not be negative, got %d", c.Synthesis.MaxRepairRounds)
	}
	if c.Synthesis.DailyCeilingMinutes < attendance.DailyOvertimeThresholdMinutes {
		return fmt.Errorf("config: synthesis.daily_ceiling_minutes must be at least %d, got %d",
			attendance.DailyOvertimeThresholdMinutes, c.Synthesis.DailyCeilingMinutes)
	}
	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.AnomalyScanCron); err != nil {
			return fmt.Errorf("config: scheduler.anomaly_scan_cron: %w", err)
		}
	}
	if _, err := c.Payroll.Rates(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
