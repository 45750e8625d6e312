package config

import "os"

// expandEnv resolves `${VAR}`/`$VAR` references inside a raw YAML
// document before it is unmarshaled, so config files can interpolate
// secrets from the environment instead of embedding them.
func expandEnv(raw []byte) []byte {
	return []byte(os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	}))
}
