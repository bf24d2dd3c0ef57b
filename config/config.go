package config

import (
	"fmt"
	"runtime"
	"strings"

	"tiff2dzi/contracts"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const EnvPrefix = "TIFF2DZI"

type InputFlags = contracts.InputFlags

func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine", "native")
	v.SetDefault("workers", DefaultWorkers())
	v.SetDefault("log-level", "warn")
	v.SetDefault("history-db", "")
	v.SetDefault("s3-bucket", "")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("s3-prefix", "")
}

// Load reads defaults, TIFF2DZI_* environment variables and an optional
// tiff2dzi.yaml. configFile, when set, must exist.
func Load(v *viper.Viper, configFile string) (*InputFlags, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("tiff2dzi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tiff2dzi")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var flags InputFlags
	if err := v.Unmarshal(&flags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &flags, nil
}

func Validate(flags *InputFlags) error {
	if flags.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", flags.Workers)
	}
	if _, err := logrus.ParseLevel(flags.LogLevel); err != nil {
		return fmt.Errorf("invalid log-level: %w", err)
	}
	if flags.S3Bucket != "" && flags.S3Region == "" {
		return fmt.Errorf("s3-region cannot be empty when s3-bucket is set")
	}
	return nil
}
