// Package config loads lineserv configuration from YAML files with
// environment variable overrides and validation.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Config is the full configuration surface of the server process.
type Config struct {
	// Addr is the listen address for the line protocol, e.g. ":9000".
	Addr string `yaml:"addr"`

	// Workers is the task execution pool size.
	Workers int `yaml:"workers"`

	// QueueCapacity bounds the shared pending-task queue.
	QueueCapacity int `yaml:"queue_capacity"`

	// EnqueueTimeout is how long a reader blocks on a full queue before the
	// request is rejected with "server busy".
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`

	// MaxInFlight caps unacknowledged requests per connection. 1 disables
	// pipelining: the reader waits for each response before the next line.
	MaxInFlight int `yaml:"max_in_flight"`

	// MaxSleep bounds the SLEEP operation's argument.
	MaxSleep time.Duration `yaml:"max_sleep"`

	// ShutdownGrace bounds how long draining waits for sessions to flush
	// in-flight responses before sockets are force-closed.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	// StatsInterval is the period of the stats log line. 0 disables it.
	StatsInterval time.Duration `yaml:"stats_interval"`

	// AdminAddr serves /metrics, /live and /ready when non-empty.
	AdminAddr string `yaml:"admin_addr"`

	// Tracing enables the stdout span exporter.
	Tracing bool `yaml:"tracing"`
}

// Default returns the configuration used when no file or flags are given.
func Default() *Config {
	return &Config{
		Addr:           ":9000",
		Workers:        8,
		QueueCapacity:  1000,
		EnqueueTimeout: time.Second,
		MaxInFlight:    1,
		MaxSleep:       10 * time.Second,
		ShutdownGrace:  5 * time.Second,
		StatsInterval:  30 * time.Second,
		AdminAddr:      "",
		Tracing:        false,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be >= 1, got %d", c.QueueCapacity)
	}
	if c.EnqueueTimeout <= 0 {
		return fmt.Errorf("enqueue_timeout must be positive, got %s", c.EnqueueTimeout)
	}
	if c.MaxInFlight < 1 {
		return fmt.Errorf("max_in_flight must be >= 1, got %d", c.MaxInFlight)
	}
	if c.MaxSleep < 0 {
		return fmt.Errorf("max_sleep must not be negative, got %s", c.MaxSleep)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown_grace must be positive, got %s", c.ShutdownGrace)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("stats_interval must not be negative, got %s", c.StatsInterval)
	}
	return nil
}

// Load fills target from a YAML file, then applies LINESERV_* environment
// overrides on top.
func Load(path string, target *Config) error {
	if err := LoadYAML(path, target); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if err := ApplyEnvOverrides("LINESERV", target); err != nil {
		return fmt.Errorf("failed to apply env overrides: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variables named PREFIX_FIELDNAME to
// the struct fields of target (e.g. LINESERV_ADDR, LINESERV_WORKERS).
func ApplyEnvOverrides(prefix string, target interface{}) error {
	if prefix == "" {
		prefix = "LINESERV"
	}

	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct")
	}

	return applyEnvToStruct(prefix, val.Elem())
}

func applyEnvToStruct(prefix string, val reflect.Value) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		envKey := prefix + "_" + strings.ToUpper(fieldType.Name)
		envKey = strings.ReplaceAll(envKey, "-", "_")

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := applyEnvToStruct(envKey, field); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envKey, err)
		}
	}

	return nil
}

func setFieldFromEnv(field reflect.Value, envValue string) error {
	// time.Duration is an int64 underneath; accept "1s" style values first.
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(envValue)
		if err != nil {
			return fmt.Errorf("invalid duration value: %s", envValue)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intVal, err := strconv.ParseInt(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", envValue)
		}
		field.SetInt(intVal)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintVal, err := strconv.ParseUint(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", envValue)
		}
		field.SetUint(uintVal)
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(envValue, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %s", envValue)
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(envValue)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", envValue)
		}
		field.SetBool(boolVal)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
