package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the complete configuration of shockaudit. The sections match the
// sections of the config file.
type Config struct {
	Main      MainConfig      `mapstructure:"main" toml:"main"`
	Mongo     MongoConfig     `mapstructure:"mongo" toml:"mongo"`
	Stats     StatsConfig     `mapstructure:"stats" toml:"stats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" toml:"telemetry"`
}

func (c Config) Validate() error {
	if err := validateConfig(c); err != nil {
		return err
	}
	if _, err := c.Main.Since(); err != nil {
		return err
	}
	return nil
}

// Validatable is a configuration that can check itself after decoding.
type Validatable interface {
	Validate() error
}

// ConfigurationError indicates a config file that cannot be read, or a
// configuration that fails validation.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateConfig(c any) error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		errs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("invalid %s: failed %q check", fe.Namespace(), fe.Tag()))
		}
		return errors.Join(errs...)
	}
	return err
}

// Load decodes the configuration resolved by the global viper instance and
// validates it.
func Load[T Validatable]() (T, error) {
	return LoadFrom[T](viper.GetViper())
}

// LoadFrom decodes the configuration resolved by v and validates it.
func LoadFrom[T Validatable](v *viper.Viper) (T, error) {
	var out T
	if err := v.Unmarshal(&out); err != nil {
		return out, &ConfigurationError{Err: fmt.Errorf("unable to decode config, %w", err)}
	}
	if err := out.Validate(); err != nil {
		return out, &ConfigurationError{Err: fmt.Errorf("invalid config, %w", err)}
	}
	return out, nil
}
