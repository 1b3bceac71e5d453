package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Validator interface {
	Validate() error
}

// Load reads config.yaml, then .env, then the process environment, each
// layer overriding the previous one. Environment keys carry the upper-cased
// service name as prefix: PRODUCTROOM_DATABASE_DRIVER -> database.driver.
func Load[T Validator](serviceName string) (T, error) {
	return LoadFiles[T](serviceName, "config.yaml", ".env")
}

// LoadFiles is Load with explicit yaml and dotenv paths. Missing files are skipped.
func LoadFiles[T Validator](serviceName, configFile, envFile string) (T, error) {
	var cfg T
	k := koanf.New(".")
	envPrefix := fmt.Sprintf("%s_", strings.ToUpper(serviceName))

	// 1. yaml file
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("WARN: error loading YAML config file '%s': %v", configFile, err)
		}
	}

	// 2. .env file
	envTransformer := func(key string) string {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, strings.ToLower(envPrefix))
		return strings.ReplaceAll(key, "_", ".")
	}
	if envFileMap, err := godotenv.Read(envFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if !strings.HasPrefix(strings.ToUpper(key), envPrefix) {
				continue
			}
			envMap[envTransformer(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 3. system environment, the highest priority
	if err := k.Load(env.Provider(envPrefix, ".", envTransformer), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
