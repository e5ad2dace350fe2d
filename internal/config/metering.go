package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultSamplingInterval      = 5 * time.Second
	DefaultTimezone              = "UTC"
	DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}-{ROOM}"
)

// MeteringConfig describes how raw device samples are interpreted.
type MeteringConfig struct {
	SamplingInterval      time.Duration
	Timezone              string
	InvoiceNumberTemplate string

	location *time.Location
}

// Location returns the timezone used for calendar period and date boundaries.
func (c MeteringConfig) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func DefaultMeteringConfig() MeteringConfig {
	return MeteringConfig{
		SamplingInterval:      DefaultSamplingInterval,
		Timezone:              DefaultTimezone,
		InvoiceNumberTemplate: DefaultInvoiceNumberTemplate,
		location:              time.UTC,
	}
}

type MeteringConfigHolder struct {
	current atomic.Value // holds MeteringConfig
}

// NewMeteringConfigHolder reads metering.yml and keeps it fresh on change.
func NewMeteringConfigHolder(log *zap.Logger) (*MeteringConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("metering")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/roomwatt/config")
	v.AddConfigPath("/etc/roomwatt")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ROOMWATT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMeteringConfig()
	v.SetDefault("metering.samplingInterval", defaults.SamplingInterval)
	v.SetDefault("metering.timezone", defaults.Timezone)
	v.SetDefault("metering.invoiceNumberTemplate", defaults.InvoiceNumberTemplate)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := readMeteringConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &MeteringConfigHolder{}
	holder.current.Store(cfg)

	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("metering.config")

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := readMeteringConfig(v)
			if err != nil {
				log.Warn("metering config reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("metering config reloaded",
				zap.String("file", e.Name),
				zap.Duration("sampling_interval", updated.SamplingInterval),
				zap.String("timezone", updated.Timezone),
			)
		})
		v.WatchConfig()
	}

	return holder, nil
}

// NewStaticMeteringConfigHolder returns a holder that never reloads.
func NewStaticMeteringConfigHolder(cfg MeteringConfig) (*MeteringConfigHolder, error) {
	normalized, err := normalizeMeteringConfig(cfg)
	if err != nil {
		return nil, err
	}
	holder := &MeteringConfigHolder{}
	holder.current.Store(normalized)
	return holder, nil
}

func (h *MeteringConfigHolder) Get() MeteringConfig {
	if h == nil {
		return DefaultMeteringConfig()
	}
	cfg, ok := h.current.Load().(MeteringConfig)
	if !ok {
		return DefaultMeteringConfig()
	}
	return cfg
}

func readMeteringConfig(v *viper.Viper) (MeteringConfig, error) {
	return normalizeMeteringConfig(MeteringConfig{
		SamplingInterval:      v.GetDuration("metering.samplingInterval"),
		Timezone:              v.GetString("metering.timezone"),
		InvoiceNumberTemplate: v.GetString("metering.invoiceNumberTemplate"),
	})
}

func normalizeMeteringConfig(cfg MeteringConfig) (MeteringConfig, error) {
	if cfg.SamplingInterval <= 0 {
		return MeteringConfig{}, errors.New("metering.samplingInterval must be positive")
	}
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return MeteringConfig{}, fmt.Errorf("metering.timezone: %w", err)
	}
	cfg.location = loc
	cfg.InvoiceNumberTemplate = strings.TrimSpace(cfg.InvoiceNumberTemplate)
	if cfg.InvoiceNumberTemplate == "" {
		cfg.InvoiceNumberTemplate = DefaultInvoiceNumberTemplate
	}
	return cfg, nil
}
