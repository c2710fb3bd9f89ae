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
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Gateway struct {
		Variant          string
		URL              string
		Credential       string
		DownloadingReady bool
		BlindStream      bool
	}
	Cache struct {
		PositiveTTLMinutes int
		NegativeTTLSeconds int
	}
	Lock struct {
		TTLSeconds         int
		WaitAcquireSeconds int
		FastAcquireSeconds int
	}
	Poll struct {
		Attempts        int
		IntervalSeconds int
	}
	Auth struct {
		JWTSecret        string
		RegisterPassword string
		TokenTTLMinutes  int
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("RESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/resolver.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("gateway.variant", "torrserver")
	v.SetDefault("gateway.url", "http://127.0.0.1:8090")
	v.SetDefault("gateway.credential", "")
	v.SetDefault("gateway.downloadingready", true)
	v.SetDefault("gateway.blindstream", false)
	v.SetDefault("cache.positivettlminutes", 360)
	v.SetDefault("cache.negativettlseconds", 30)
	v.SetDefault("lock.ttlseconds", 60)
	v.SetDefault("lock.waitacquireseconds", 30)
	v.SetDefault("lock.fastacquireseconds", 5)
	v.SetDefault("poll.attempts", 15)
	v.SetDefault("poll.intervalseconds", 2)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.registerpassword", "")
	v.SetDefault("auth.tokenttlminutes", 1440)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
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
