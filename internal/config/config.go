package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	GitHub struct {
		Token       string
		TargetUsers int
		Query       string
	}
	Cache struct {
		Path string
	}
	Site struct {
		Dir     string
		BaseURL string
	}
	Faces struct {
		Dir string
	}
	Database struct {
		Path string
	}
	Server struct {
		Addr string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("FACES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("github.token", "")
	v.SetDefault("github.targetusers", 400)
	v.SetDefault("github.query", "followers:1..10000000")
	v.SetDefault("cache.path", "cache/users.json")
	v.SetDefault("site.dir", "docs")
	v.SetDefault("site.baseurl", "")
	v.SetDefault("faces.dir", "docs/images/faces")
	v.SetDefault("database.path", "data/faces.db")
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "faces")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// GITHUB_TOKEN is the conventional variable name; honor it when the
	// prefixed one is not set
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
