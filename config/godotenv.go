package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// Reader reads KEY=VALUE files into a map.
type Reader interface {
	Read(filenames ...string) (map[string]string, error)
}

// GodotenvReader reads dotenv files with godotenv.
type GodotenvReader struct{}

// Read reads generic Unix-type configuration files into a map (map[key]value).
func (GodotenvReader) Read(filenames ...string) (map[string]string, error) {
	data, err := godotenv.Read(filenames...)
	if err != nil {
		return data, fmt.Errorf("(config-godotenv) %w", err)
	}
	return data, nil
}
