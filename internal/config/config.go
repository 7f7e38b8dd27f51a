// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxDeleteTimeDays は time.Duration で表現できる最大の保持日数。
const MaxDeleteTimeDays = int(math.MaxInt64 / int64(24*time.Hour))

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// LDAP
	LDAPHostURL   string
	LDAPBindDN    string
	LDAPBindPW    string
	LDAPVersion   int
	LDAPStartTLS  bool
	LDAPContexts  []string
	LDAPFilter    string
	LDAPAttribute string
	LDAPPageSize  int
	LDAPTimeout   time.Duration

	// Reconcile
	AuthMethod     string
	DeleteTimeDays int

	// Worker
	CheckSchedule   string
	ApplyActions    bool
	ApplyRatePerSec float64
	RunOnStart      bool

	// Server
	ServerPort string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// DATABASE_URLが未設定の場合はエラーを返す。
// ディレクトリ接続の設定は ValidateDirectory で別に検証する。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}

	cfg.LDAPHostURL = os.Getenv("LDAP_HOST_URL")
	cfg.LDAPContexts = splitContexts(os.Getenv("LDAP_CONTEXTS"))

	// Optional fields with defaults
	cfg.LDAPBindDN = getEnvString("LDAP_BIND_DN", "")
	cfg.LDAPBindPW = getEnvString("LDAP_BIND_PW", "")
	cfg.LDAPVersion = getEnvInt("LDAP_VERSION", 3)
	cfg.LDAPStartTLS = getEnvBool("LDAP_START_TLS", false)
	cfg.LDAPFilter = getEnvString("LDAP_FILTER", "(cn=*)")
	cfg.LDAPAttribute = getEnvString("LDAP_ATTRIBUTE", "cn")
	cfg.LDAPPageSize = getEnvInt("LDAP_PAGE_SIZE", 500)
	cfg.LDAPTimeout = getEnvDuration("LDAP_TIMEOUT", 30*time.Second)
	cfg.AuthMethod = getEnvString("AUTH_METHOD", "shibboleth")
	cfg.DeleteTimeDays = getEnvInt("DELETE_TIME_DAYS", 365)
	cfg.CheckSchedule = getEnvString("CHECK_SCHEDULE", "0 3 * * *")
	cfg.ApplyActions = getEnvBool("APPLY_ACTIONS", false)
	cfg.ApplyRatePerSec = getEnvFloat("APPLY_RATE_PER_SEC", 10)
	cfg.RunOnStart = getEnvBool("RUN_ON_START", true)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if cfg.DeleteTimeDays <= 0 {
		return nil, fmt.Errorf("DELETE_TIME_DAYS must be positive: %d", cfg.DeleteTimeDays)
	}
	if cfg.DeleteTimeDays > MaxDeleteTimeDays {
		return nil, fmt.Errorf("DELETE_TIME_DAYS must be at most %d: %d", MaxDeleteTimeDays, cfg.DeleteTimeDays)
	}
	if cfg.LDAPVersion != 3 {
		return nil, fmt.Errorf("LDAP_VERSION %d is not supported (only 3)", cfg.LDAPVersion)
	}

	return cfg, nil
}

// ValidateDirectory はディレクトリ検索に必要な設定が揃っているかを検証する。
// worker と check の起動前に呼ぶ。migrate では不要。
func (c *Config) ValidateDirectory() error {
	var missing []string
	if c.LDAPHostURL == "" {
		missing = append(missing, "LDAP_HOST_URL")
	}
	if len(c.LDAPContexts) == 0 {
		missing = append(missing, "LDAP_CONTEXTS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

// splitContexts は ; 区切りの検索ベース一覧を分割する。空要素は捨てる。
func splitContexts(v string) []string {
	var out []string
	for _, c := range strings.Split(v, ";") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
