package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadEnv loads environment variables from a .env file. Variables already set in the
// environment win over the file.
func LoadEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		// Split on the first equals sign
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(strings.TrimPrefix(parts[0], "export "))
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		if _, set := os.LookupEnv(key); set {
			continue
		}
		os.Setenv(key, value)
	}

	return scanner.Err()
}

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config) error {
	setString := func(name string, target *string) {
		if v := os.Getenv(name); v != "" {
			*target = v
		}
	}
	setDuration := func(name string, target *time.Duration) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
		*target = d
		return nil
	}

	setString("KANBAN_ADDR", &cfg.Addr)
	setString("PORT", &cfg.Port)
	setString("KANBAN_PORT", &cfg.Port)
	setString("KANBAN_STATIC_DIR", &cfg.StaticDir)
	setString("JWT_SECRET", &cfg.JWTSecret)
	setString("KANBAN_DB_PATH", &cfg.DBPath)
	setString("KANBAN_STORAGE_KEY", &cfg.StorageKey)
	setString("KANBAN_LOG_LEVEL", &cfg.LogLevel)
	setString("KANBAN_LOG_FORMAT", &cfg.LogFormat)

	setString("SMTP_HOST", &cfg.SMTP.Host)
	setString("SMTP_PORT", &cfg.SMTP.Port)
	setString("SMTP_USERNAME", &cfg.SMTP.Username)
	setString("SMTP_PASSWORD", &cfg.SMTP.Password)
	setString("SMTP_FROM", &cfg.SMTP.From)

	if v := os.Getenv("KANBAN_DEV_MAGIC_LINK"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: KANBAN_DEV_MAGIC_LINK: %v", ErrInvalidConfig, err)
		}
		cfg.DevMagicLink = on
	}

	if v := os.Getenv("KANBAN_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	for name, target := range map[string]*time.Duration{
		"KANBAN_TOKEN_TTL":          &cfg.TokenTTL,
		"KANBAN_SESSION_IDLE":       &cfg.SessionIdle,
		"KANBAN_SAME_COLUMN_DELAY":  &cfg.Drag.SameColumnDelay,
		"KANBAN_CROSS_COLUMN_DELAY": &cfg.Drag.CrossColumnDelay,
		"KANBAN_FLIP_WINDOW":        &cfg.Drag.FlipWindow,
	} {
		if err := setDuration(name, target); err != nil {
			return err
		}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
