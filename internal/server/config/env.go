package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/kiwes/internal/timex"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "KIWES_"

// parseEnv overlays KIWES_* variables. Unset variables leave fields alone;
// lifetimes accept seconds or duration strings.
func parseEnv(config *Config) error {
	err := env.ParseWithOptions(config, env.Options{
		Prefix: EnvPrefix,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (interface{}, error) {
				return timex.ParseLifetime(v)
			},
		},
	})
	if err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}
