package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CRMConfig carries tunable workflow settings read from crm.yml. It is
// hot-reloaded, so consumers must go through a holder and never cache
// the struct across requests.
type CRMConfig struct {
	AgingBuckets   []AgingBucket `mapstructure:"agingBuckets"`
	BoardColumns   []string      `mapstructure:"boardColumns"`
	InvoiceDueDays int           `mapstructure:"invoiceDueDays"`
}

// AgingBucket groups open cases by age for reporting.
type AgingBucket struct {
	Label   string `mapstructure:"label"`
	MinDays int    `mapstructure:"minDays"`
	MaxDays *int   `mapstructure:"maxDays"`
}

func DefaultCRMConfig() CRMConfig {
	return CRMConfig{
		AgingBuckets: []AgingBucket{
			{Label: "0-30", MinDays: 0, MaxDays: intPtr(30)},
			{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
			{Label: "60+", MinDays: 61, MaxDays: nil},
		},
		BoardColumns:   []string{"Backlog", "In Progress", "Review", "Done"},
		InvoiceDueDays: 30,
	}
}

func intPtr(v int) *int { return &v }

type CRMConfigHolder struct {
	current atomic.Value // holds CRMConfig
}

func NewCRMConfigHolder() (*CRMConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("crm")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/opencrm/config")
	v.AddConfigPath("/etc/opencrm")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OPENCRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCRMConfig()
		v.SetDefault("crm.agingBuckets", defaults.AgingBuckets)
		v.SetDefault("crm.boardColumns", defaults.BoardColumns)
		v.SetDefault("crm.invoiceDueDays", defaults.InvoiceDueDays)
	}

	var cfg CRMConfig
	if err := v.UnmarshalKey("crm", &cfg); err != nil {
		return nil, err
	}
	if err := validateCRMConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CRMConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CRMConfig
		if err := v.UnmarshalKey("crm", &updated); err != nil {
			log.Printf("[crm-config] reload failed: %v", err)
			return
		}
		if err := validateCRMConfig(updated); err != nil {
			log.Printf("[crm-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[crm-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCRMConfigHolder wraps a fixed config without file watching.
// Intended for tests and one-shot tools.
func NewStaticCRMConfigHolder(cfg CRMConfig) *CRMConfigHolder {
	holder := &CRMConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CRMConfigHolder) Get() CRMConfig {
	return h.current.Load().(CRMConfig)
}

func validateCRMConfig(cfg CRMConfig) error {
	if len(cfg.AgingBuckets) == 0 {
		return errors.New("crm.agingBuckets cannot be empty")
	}
	if len(cfg.BoardColumns) == 0 {
		return errors.New("crm.boardColumns cannot be empty")
	}
	if cfg.InvoiceDueDays <= 0 {
		return errors.New("crm.invoiceDueDays must be positive")
	}
	return nil
}
