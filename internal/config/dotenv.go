package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadDotEnv reads a .env file and sets environment variables.
// It does NOT override existing env vars (env takes precedence).
func LoadDotEnv(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err // file not found is fine, caller can ignore
	}

	for _, k := range v.AllKeys() {
		key := strings.ToUpper(k)
		if os.Getenv(key) == "" {
			os.Setenv(key, v.GetString(k))
		}
	}
	return nil
}
