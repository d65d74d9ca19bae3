package config

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/vendora/internal/pricing"
	"github.com/spf13/viper"
)

// PricingPolicyHolder exposes the pricing policy currently in effect and
// refreshes it when the underlying config file changes. Invalid reloads are
// ignored so a bad edit never takes down running price computation.
type PricingPolicyHolder struct {
	current atomic.Value // holds pricing.Policy
}

// NewPricingPolicyHolder loads pricing.yml and watches it for changes.
// A missing file falls back to the default policy.
func NewPricingPolicyHolder() (*PricingPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/vendora/config") // Volume-mounted config
	v.AddConfigPath("/etc/vendora")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("VENDORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := pricing.DefaultPolicy()
	v.SetDefault("pricing.processing_fee_rate", defaults.ProcessingFeeRate)
	v.SetDefault("pricing.tax_rate", defaults.TaxRate)
	v.SetDefault("pricing.rounding_increment", defaults.RoundingIncrement)
	v.SetDefault("pricing.max_commission_rate", defaults.MaxCommissionRate)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	policy, err := unmarshalPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := &PricingPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalPolicy(v)
		if err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// StaticPricingPolicy wraps a fixed policy, with no file watching. Used by
// tests and one-shot tools.
func StaticPricingPolicy(policy pricing.Policy) *PricingPolicyHolder {
	holder := &PricingPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// Get returns the pricing policy currently in effect.
func (h *PricingPolicyHolder) Get() pricing.Policy {
	return h.current.Load().(pricing.Policy)
}

func unmarshalPolicy(v *viper.Viper) (pricing.Policy, error) {
	policy := pricing.Policy{
		ProcessingFeeRate: v.GetFloat64("pricing.processing_fee_rate"),
		TaxRate:           v.GetFloat64("pricing.tax_rate"),
		RoundingIncrement: v.GetFloat64("pricing.rounding_increment"),
		MaxCommissionRate: v.GetFloat64("pricing.max_commission_rate"),
	}
	if err := policy.Validate(); err != nil {
		return pricing.Policy{}, err
	}
	return policy, nil
}
