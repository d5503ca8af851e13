package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfigHolder serves billing tunables with hot reload from an
// optional billing.yml. Environment-derived values act as defaults when no
// file is present.
type BillingConfigHolder struct {
	log     *zap.Logger
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder(cfg Config, log *zap.Logger) (*BillingConfigHolder, error) {
	defaults := cfg.Billing

	v := viper.New()
	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/lumina")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LUMINA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("billing.defaultCurrency", defaults.DefaultCurrency)
	v.SetDefault("billing.defaultDueDays", defaults.DefaultDueDays)
	v.SetDefault("billing.numberRetryBudget", defaults.NumberRetryBudget)
	v.SetDefault("billing.expirySweepInterval", defaults.ExpirySweepInterval)
	v.SetDefault("billing.transactionPageLimit", defaults.TransactionPageLimit)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var loaded BillingConfig
	if err := v.UnmarshalKey("billing", &loaded); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(loaded); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{log: log.Named("billing.config")}
	holder.current.Store(loaded)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			holder.log.Error("reload failed", zap.Error(err))
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			holder.log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		holder.log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if len(strings.TrimSpace(cfg.DefaultCurrency)) != 3 {
		return errors.New("billing.defaultCurrency must be an ISO-4217 code")
	}
	if cfg.DefaultDueDays <= 0 {
		return errors.New("billing.defaultDueDays must be positive")
	}
	if cfg.NumberRetryBudget <= 0 {
		return errors.New("billing.numberRetryBudget must be positive")
	}
	return nil
}
