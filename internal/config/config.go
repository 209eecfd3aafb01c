// Package config loads run settings from flags, an optional config file
// (.properties, .yaml or .json) and STALECHECK_* environment variables.
package config

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

const (
	TenantSingle = "single"
	TenantMulti  = "multi"

	ApproachInterval = "interval"
	ApproachRDBMS    = "RDBMS"
)

// Config mirrors the benchmark property names, so an existing properties
// file can be passed unchanged.
type Config struct {
	Tenant             string `mapstructure:"tenant" default:"single" description:"relational table partitioning: single or multi"`
	ValidationThreads  int    `mapstructure:"validationthreads" default:"100" description:"read validation pool size"`
	ValidationBlock    int    `mapstructure:"validationblock" default:"10000" description:"records per dispatched batch"`
	UpdateThreads      int    `mapstructure:"updatethreads" default:"0" description:"write ingestion pool size, 0 uses validationthreads"`
	UpdateBlock        int    `mapstructure:"updateblock" default:"0" description:"write batch size, 0 uses validationblock"`
	ValidationApproach string `mapstructure:"validationapproach" default:"interval" description:"interval, or RDBMS to also load writes into a database"`

	DBURL      string `mapstructure:"validation.url" default:"" description:"database url for the RDBMS approach"`
	DBUser     string `mapstructure:"validation.user" default:"" description:"database user"`
	DBPassword string `mapstructure:"validation.passwd" default:"" description:"database password"`
	DBDriver   string `mapstructure:"validation.driver" default:"postgres" description:"database driver: postgres or sqlite"`

	MachineID   int  `mapstructure:"machineid" default:"0" description:"machine id embedded in log file names"`
	ThreadCount int  `mapstructure:"threadcount" default:"1" description:"number of benchmark worker threads per machine"`
	RatingMode  bool `mapstructure:"ratingmode" default:"false" description:"print phase markers for a rating harness"`

	LogDir           string        `mapstructure:"logdir" default:"." description:"directory holding the update and read logs"`
	ProgressInterval time.Duration `mapstructure:"progressinterval" default:"10s" description:"interval between progress lines"`
	InitialCounts    string        `mapstructure:"initialcounts" default:"" description:"json file of per-resource initial values"`
	Filter           string        `mapstructure:"filter" default:"" description:"recql expression selecting records of both phases"`
	SnapshotOut      string        `mapstructure:"snapshot.out" default:"" description:"write the sealed timelines to this file"`
	SnapshotIn       string        `mapstructure:"snapshot.in" default:"" description:"load timelines from this file instead of update logs"`

	Report      string `mapstructure:"report" default:"" description:"report file, stdout when empty"`
	Format      string `mapstructure:"format" default:"json" description:"report format: json or yaml"`
	MetricsFile string `mapstructure:"metricsfile" default:"" description:"prometheus textfile to write after the run"`
	LogLevel    string `mapstructure:"log-level" default:"info" description:"debug, info, warn or error"`
}

var durationType = reflect.TypeOf(time.Duration(0))

// Register adds one flag per Config field to flags.
func Register(flags *pflag.FlagSet) {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		def := field.Tag.Get("default")
		usage := field.Tag.Get("description")

		switch {
		case field.Type == durationType:
			d, _ := time.ParseDuration(def)
			flags.Duration(name, d, usage)
		case field.Type.Kind() == reflect.String:
			flags.String(name, def, usage)
		case field.Type.Kind() == reflect.Int:
			n, _ := strconv.Atoi(def)
			flags.Int(name, n, usage)
		case field.Type.Kind() == reflect.Bool:
			b, _ := strconv.ParseBool(def)
			flags.Bool(name, b, usage)
		}
	}
}

// Load merges, lowest first: flag defaults, environment, the config file at
// path (if any), then flags set explicitly on the command line.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STALECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, xerrors.Errorf("read config %s: %w", path, err)
		}
	}

	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Name == "help" || flag.Name == "config" {
			return
		}
		if flag.Changed || !v.IsSet(flag.Name) {
			v.Set(flag.Name, flag.Value.String())
		}
	})

	// Keys are read one by one because dotted names like validation.url
	// are nested maps to viper.
	cfg := &Config{}
	val := reflect.ValueOf(cfg).Elem()
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		switch {
		case field.Type == durationType:
			val.Field(i).SetInt(int64(v.GetDuration(key)))
		case field.Type.Kind() == reflect.String:
			val.Field(i).SetString(strings.TrimSpace(v.GetString(key)))
		case field.Type.Kind() == reflect.Int:
			val.Field(i).SetInt(int64(v.GetInt(key)))
		case field.Type.Kind() == reflect.Bool:
			val.Field(i).SetBool(v.GetBool(key))
		}
	}
	return cfg, nil
}

// Validate rejects settings a run cannot start with.
func (c *Config) Validate() error {
	switch {
	case !strings.EqualFold(c.Tenant, TenantSingle) && !strings.EqualFold(c.Tenant, TenantMulti):
		return xerrors.Errorf("tenant must be %q or %q, got %q", TenantSingle, TenantMulti, c.Tenant)
	case !strings.EqualFold(c.ValidationApproach, ApproachInterval) && !strings.EqualFold(c.ValidationApproach, ApproachRDBMS):
		return xerrors.Errorf("validationapproach must be %q or %q, got %q", ApproachInterval, ApproachRDBMS, c.ValidationApproach)
	case c.ValidationThreads < 1:
		return xerrors.Errorf("validationthreads must be positive, got %d", c.ValidationThreads)
	case c.ValidationBlock < 1:
		return xerrors.Errorf("validationblock must be positive, got %d", c.ValidationBlock)
	case c.UpdateThreads < 0:
		return xerrors.Errorf("updatethreads must not be negative, got %d", c.UpdateThreads)
	case c.UpdateBlock < 0:
		return xerrors.Errorf("updateblock must not be negative, got %d", c.UpdateBlock)
	case c.ThreadCount < 1:
		return xerrors.Errorf("threadcount must be positive, got %d", c.ThreadCount)
	case c.MachineID < 0:
		return xerrors.Errorf("machineid must not be negative, got %d", c.MachineID)
	case c.ProgressInterval <= 0:
		return xerrors.Errorf("progressinterval must be positive, got %s", c.ProgressInterval)
	case c.Format != "json" && c.Format != "yaml":
		return xerrors.Errorf("format must be json or yaml, got %q", c.Format)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.SnapshotIn != "" && c.Filter != "" {
		return xerrors.New("filter cannot be combined with snapshot.in, the snapshot holds unfiltered writes")
	}
	if c.IsRDBMS() {
		if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
			return xerrors.Errorf("validation.driver must be postgres or sqlite, got %q", c.DBDriver)
		}
		if c.DBURL == "" {
			return xerrors.New("validation.url is required for the RDBMS approach")
		}
		if c.SnapshotIn != "" {
			return xerrors.New("snapshot.in cannot be combined with the RDBMS approach")
		}
	}
	return nil
}

func (c *Config) IsRDBMS() bool {
	return strings.EqualFold(c.ValidationApproach, ApproachRDBMS)
}

func (c *Config) MultiTenant() bool {
	return strings.EqualFold(c.Tenant, TenantMulti)
}

// UpdatePool returns the write phase pool size and batch size, inheriting
// the validation values where unset.
func (c *Config) UpdatePool() (threads, block int) {
	threads, block = c.UpdateThreads, c.UpdateBlock
	if threads == 0 {
		threads = c.ValidationThreads
	}
	if block == 0 {
		block = c.ValidationBlock
	}
	return threads, block
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, xerrors.Errorf("unknown log level %q", c.LogLevel)
}
