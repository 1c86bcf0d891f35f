package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PolicyConfig is the operator-tunable part of the lifecycle rules: the plan
// catalog, the default trial length, and the role capability table. It is
// loaded from a YAML file and hot-reloaded on change; when no file exists the
// compiled-in defaults apply.
type PolicyConfig struct {
	TrialDays int                 `mapstructure:"trial_days"`
	Plans     []PlanPolicy        `mapstructure:"plans"`
	Roles     map[string][]string `mapstructure:"roles"`
}

type PlanPolicy struct {
	Code           string `mapstructure:"code"`
	MonthlyCents   int64  `mapstructure:"monthly_cents"`
	MaxTechnicians int    `mapstructure:"max_technicians"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		TrialDays: 14,
		Plans: []PlanPolicy{
			{Code: "FREE", MonthlyCents: 0, MaxTechnicians: 1},
			{Code: "STARTER", MonthlyCents: 4900, MaxTechnicians: 3},
			{Code: "PRO", MonthlyCents: 9900, MaxTechnicians: 10},
			{Code: "ENTERPRISE", MonthlyCents: 29900, MaxTechnicians: 0},
		},
		Roles: map[string][]string{
			"SUPER_ADMIN": {"*"},
			"SUPPORT":     {"shop.view", "shop.suspend", "shop.reactivate", "trial.extend", "audit.view"},
			"BILLING":     {"shop.view", "billing", "billing.refund", "plan.change", "invoice.view", "audit.view"},
			"READONLY":    {"shop.view", "invoice.view", "audit.view"},
		},
	}
}

// PolicyHolder keeps the current PolicyConfig behind an atomic.Value so
// request paths read it without locking.
type PolicyHolder struct {
	current atomic.Value // holds PolicyConfig
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("lifecycle")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/fixology/config")
	v.AddConfigPath("/etc/fixology")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIXOLOGY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PolicyHolder{}
	holder.current.Store(DefaultPolicyConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return holder, nil
	}

	if cfg, err := decodePolicy(v); err != nil {
		log.Printf("lifecycle config invalid, using defaults: %v", err)
	} else {
		holder.current.Store(cfg)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := decodePolicy(v)
		if err != nil {
			log.Printf("lifecycle config reload failed: %v", err)
			return
		}
		holder.current.Store(cfg)
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticPolicyHolder wraps a fixed policy without file watching.
func NewStaticPolicyHolder(cfg PolicyConfig) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PolicyHolder) Current() PolicyConfig {
	return h.current.Load().(PolicyConfig)
}

func decodePolicy(v *viper.Viper) (PolicyConfig, error) {
	cfg := DefaultPolicyConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return PolicyConfig{}, err
	}
	if cfg.TrialDays <= 0 {
		return PolicyConfig{}, errors.New("trial_days must be positive")
	}
	if len(cfg.Roles) == 0 {
		return PolicyConfig{}, errors.New("at least one role is required")
	}
	return cfg, nil
}
