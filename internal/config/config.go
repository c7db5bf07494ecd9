package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingConfig is returned by Validate when required settings are absent.
var ErrMissingConfig = errors.New("missing configuration")

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Env           string        `yaml:"env" env:"LEAVESYNC_ENV"`
	Addr          string        `yaml:"addr" env:"LEAVESYNC_ADDR"`
	JWTSecret     string        `yaml:"jwt_secret" env:"LEAVESYNC_JWT_SECRET"`
	APITimeout    time.Duration `yaml:"timeout" env:"LEAVESYNC_API_TIMEOUT"`
	DatabasePath  string        `yaml:"database_path" env:"LEAVESYNC_DATABASE_PATH"`
	TokenDuration time.Duration `yaml:"token_duration" env:"LEAVESYNC_TOKEN_DURATION"`
	Admin         AdminConfig   `yaml:"admin"`
	Notion        NotionConfig  `yaml:"notion"`
	SMTP          SMTPConfig    `yaml:"smtp"`
	Sync          SyncConfig    `yaml:"sync"`
}

// AdminConfig holds the single operator account for the admin API.
type AdminConfig struct {
	Username     string `yaml:"username" env:"LEAVESYNC_ADMIN_USER"`
	PasswordHash string `yaml:"password_hash" env:"LEAVESYNC_ADMIN_PASSWORD_HASH"`
}

type NotionConfig struct {
	Token                   string         `yaml:"token" env:"NOTION_TOKEN"`
	BaseURL                 string         `yaml:"base_url" env:"NOTION_BASE_URL"`
	Version                 string         `yaml:"version" env:"NOTION_VERSION"`
	EmployeesDB             string         `yaml:"employees_db" env:"NOTION_DB_EMPLOYEES"`
	VacationDB              string         `yaml:"vacation_db" env:"VACATION_DB_ID"`
	Timeout                 time.Duration  `yaml:"timeout" env:"NOTION_TIMEOUT"`
	Retries                 int            `yaml:"retries" env:"NOTION_RETRIES"`
	Backoff                 time.Duration  `yaml:"backoff" env:"NOTION_BACKOFF"`
	CircuitFailureThreshold int            `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration  `yaml:"circuit_reset"`
	RequestFields           RequestFields  `yaml:"request_fields"`
	EmployeeFields          EmployeeFields `yaml:"employee_fields"`
}

// RequestFields maps vacation request attributes to property names in the
// vacation database.
type RequestFields struct {
	NationalID       string `yaml:"national_id"`
	NationalIDType   string `yaml:"national_id_type"`
	StartDate        string `yaml:"start_date"`
	EndDate          string `yaml:"end_date"`
	RequestedDays    string `yaml:"requested_days"`
	Status           string `yaml:"status"`
	StatusType       string `yaml:"status_type"`
	EmailSent        string `yaml:"email_sent"`
	Email            string `yaml:"email"`
	EmployeeName     string `yaml:"employee_name"`
	RemainingBalance string `yaml:"remaining_balance"`
}

// EmployeeFields maps employee attributes to property names in the
// employees database.
type EmployeeFields struct {
	NationalID       string `yaml:"national_id"`
	NationalIDType   string `yaml:"national_id_type"`
	Name             string `yaml:"name"`
	Email            string `yaml:"email"`
	LeaveBalance     string `yaml:"leave_balance"`
	RemainingBalance string `yaml:"remaining_balance"`
}

type SMTPConfig struct {
	Host      string        `yaml:"host" env:"SMTP_HOST"`
	Port      int           `yaml:"port" env:"SMTP_PORT"`
	Username  string        `yaml:"username" env:"SMTP_USER"`
	Password  string        `yaml:"password" env:"SMTP_PASS"`
	From      string        `yaml:"from" env:"SMTP_FROM"`
	FromName  string        `yaml:"from_name" env:"SMTP_FROM_NAME"`
	TLSPolicy string        `yaml:"tls_policy" env:"SMTP_TLS_POLICY"`
	Timeout   time.Duration `yaml:"timeout" env:"SMTP_TIMEOUT"`
}

type SyncConfig struct {
	BatchSize      int           `yaml:"batch_size" env:"LEAVESYNC_BATCH_SIZE"`
	MaxPages       int           `yaml:"max_pages" env:"LEAVESYNC_MAX_PAGES"`
	Interval       time.Duration `yaml:"interval" env:"LEAVESYNC_INTERVAL"`
	JobMaxAttempts int           `yaml:"job_max_attempts"`
	DryRun         bool          `yaml:"dry_run" env:"LEAVESYNC_DRY_RUN"`
}

// LoadConfig builds a Config from defaults, an optional YAML file and the
// process environment, in that order of precedence (environment wins).
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Env:           "production",
		Addr:          ":8080",
		JWTSecret:     insecureJWTSecret,
		APITimeout:    15 * time.Second,
		DatabasePath:  "leavesync.db",
		TokenDuration: 1 * time.Hour,
		Sync: SyncConfig{
			BatchSize: 50,
			MaxPages:  1,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// LoadEnv loads the given dotenv files that exist on disk and returns how many
// were loaded. Variables already present in the environment are not replaced.
func LoadEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}

	return len(existing), godotenv.Load(existing...)
}

// Validate fills defaults for optional settings and reports required
// settings that are missing. The returned error wraps ErrMissingConfig.
func (c *Config) Validate() error {
	var missing []string
	if c.Notion.Token == "" {
		missing = append(missing, "notion.token")
	}
	if c.Notion.VacationDB == "" {
		missing = append(missing, "notion.vacation_db")
	}
	if c.Notion.EmployeesDB == "" {
		missing = append(missing, "notion.employees_db")
	}
	if c.SMTP.Host == "" {
		missing = append(missing, "smtp.host")
	}
	if c.SMTP.From == "" {
		missing = append(missing, "smtp.from")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	if c.Notion.Retries < 0 {
		return fmt.Errorf("notion.retries must not be negative, got %d", c.Notion.Retries)
	}

	c.applyDefaults()
	return nil
}

// ValidateServe checks the settings only the admin API needs.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: jwt_secret", ErrMissingConfig)
	}
	if c.JWTSecret == insecureJWTSecret && !c.IsDevelopment() {
		return fmt.Errorf("insecure jwt_secret outside development")
	}
	if c.Admin.Username == "" || c.Admin.PasswordHash == "" {
		return fmt.Errorf("%w: admin.username, admin.password_hash", ErrMissingConfig)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func (c *Config) applyDefaults() {
	n := &c.Notion
	if n.BaseURL == "" {
		n.BaseURL = "https://api.notion.com"
	}
	if n.Version == "" {
		n.Version = "2022-06-28"
	}
	if n.Timeout <= 0 {
		n.Timeout = 30 * time.Second
	}
	if n.Retries == 0 {
		n.Retries = 2
	}
	if n.Backoff <= 0 {
		n.Backoff = 500 * time.Millisecond
	}
	if n.CircuitFailureThreshold <= 0 {
		n.CircuitFailureThreshold = 5
	}
	if n.CircuitReset <= 0 {
		n.CircuitReset = 30 * time.Second
	}

	rf := &n.RequestFields
	setDefault(&rf.NationalID, "National ID")
	setDefault(&rf.NationalIDType, "rich_text")
	setDefault(&rf.StartDate, "Start Date")
	setDefault(&rf.EndDate, "End Date")
	setDefault(&rf.RequestedDays, "Requested Days")
	setDefault(&rf.Status, "Status")
	setDefault(&rf.StatusType, "select")
	setDefault(&rf.EmailSent, "Email Sent")
	setDefault(&rf.Email, "Email")
	setDefault(&rf.EmployeeName, "Employee Name")
	setDefault(&rf.RemainingBalance, "Remaining Balance")

	ef := &n.EmployeeFields
	setDefault(&ef.NationalID, "National ID")
	setDefault(&ef.NationalIDType, "rich_text")
	setDefault(&ef.Name, "Name")
	setDefault(&ef.Email, "Email")
	setDefault(&ef.LeaveBalance, "Leave Balance")
	setDefault(&ef.RemainingBalance, "Remaining Balance")

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLSPolicy == "" {
		c.SMTP.TLSPolicy = "mandatory"
	}
	if c.SMTP.Timeout <= 0 {
		c.SMTP.Timeout = 15 * time.Second
	}

	if c.Sync.BatchSize <= 0 || c.Sync.BatchSize > 100 {
		c.Sync.BatchSize = 50
	}
	if c.Sync.MaxPages < 0 {
		c.Sync.MaxPages = 1
	}
	if c.Sync.JobMaxAttempts <= 0 {
		c.Sync.JobMaxAttempts = 3
	}
}

func setDefault(field *string, def string) {
	if strings.TrimSpace(*field) == "" {
		*field = def
	}
}
