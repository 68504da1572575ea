package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=value pairs from path into the environment. A missing
// file is not an error, and variables already set in the real environment
// win over the file.
// Path is cleaned with filepath.Clean to avoid traversal if path is user-influenced.
func LoadEnvFile(path string) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
