package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads variables from a .env file. A missing file is not an
// error; variables already set in the process environment win.
func LoadEnvFile(envFilePath ...string) error {
	envFile := ".env"
	if len(envFilePath) > 0 && envFilePath[0] != "" {
		envFile = envFilePath[0]
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("error loading %s file: %w", envFile, err)
	}
	return nil
}

// EnvFileCandidates lists where a .env file is looked for, in order.
func EnvFileCandidates() []string {
	paths := []string{
		".env",
		"configs/.env",
		"../.env",
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".env"))
	}
	return paths
}

// LoadEnvFromMultiplePaths loads the first .env file that exists among the
// candidates. Running without any .env file is fine.
func LoadEnvFromMultiplePaths() error {
	for _, path := range EnvFileCandidates() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadEnvFile(path)
	}
	return nil
}
