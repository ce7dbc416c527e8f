package common

import "os"

// Getenv returns the environment variable key or def when it is unset or
// empty. It is used to seed flag defaults from the container environment.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
