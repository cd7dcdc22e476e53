package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Defaulter is implemented by configs that fill in their own defaults before the file and the
// environment are applied.
type Defaulter interface {
	SetDefaults()
}

// Load config from file into the config struct, config must be a pointer to the config struct.
// Values already set on config act as defaults; environment variables override the file, with
// "." replaced by "_" (HTTP.PORT becomes HTTP_PORT).
func Load(file string, config any) error {
	if d, ok := config.(Defaulter); ok {
		d.SetDefaults()
	}

	v := viper.New()
	m := make(map[string]any)

	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}
