package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the application's configuration values.
type Config struct {
	AppName string `json:"appname"`
	AppEnv  string `json:"appenv"`
	AppPort uint16 `json:"appport"`
	GinMode string `json:"ginmode"`

	DBDriver     string        `json:"dbdriver"`
	DBHost       string        `json:"dbhost"`
	DBPort       uint16        `json:"dbport"`
	DBName       string        `json:"dbname"`
	DBUser       string        `json:"dbuser"`
	DBPass       string        `json:"-"`
	DBSSLMode    string        `json:"dbsslmode"`
	DBMaxConns   int           `json:"dbmaxconns"`
	QueryTimeout time.Duration `json:"querytimeout"`

	RequestTimeout time.Duration `json:"requesttimeout"`
	JWTSecret      string        `json:"-"`
	AuthEnabled    bool          `json:"authenabled"`

	DosageDefault       float64 `json:"dosagedefault"`
	DosageHighThreshold float64 `json:"dosagehighthreshold"`
	DosageLowThreshold  float64 `json:"dosagelowthreshold"`
	DosageStep          float64 `json:"dosagestep"`

	ImageMaxBytes int64  `json:"imagemaxbytes"`
	ImageStore    string `json:"imagestore"`
	UploadDir     string `json:"uploaddir"`
	S3Bucket      string `json:"s3bucket"`
	S3Prefix      string `json:"s3prefix"`

	EventsBackend string   `json:"eventsbackend"`
	KafkaBrokers  []string `json:"kafkabrokers"`
	KafkaTopic    string   `json:"kafkatopic"`
	SQSQueueName  string   `json:"sqsqueuename"`

	MetricRateLimit  int           `json:"metricratelimit"`
	MetricRateWindow time.Duration `json:"metricratewindow"`
}

var config *Config
var once sync.Once

func setDefaults(v *viper.Viper) {
	v.SetDefault("APPNAME", "mangxia")
	v.SetDefault("APPENV", "development")
	v.SetDefault("APPPORT", 3001)
	v.SetDefault("GINMODE", "debug")
	v.SetDefault("DBDRIVER", "postgres")
	v.SetDefault("DBHOST", "localhost")
	v.SetDefault("DBPORT", 5432)
	v.SetDefault("DBNAME", "mangxia_db")
	v.SetDefault("DBSSLMODE", "disable")
	v.SetDefault("DBMAXCONNS", 20)
	v.SetDefault("QUERY_TIMEOUT", "10s")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("DOSAGE_DEFAULT", 1.0)
	v.SetDefault("DOSAGE_HIGH_THRESHOLD", 1.8)
	v.SetDefault("DOSAGE_LOW_THRESHOLD", 1.5)
	v.SetDefault("DOSAGE_STEP", 0.25)
	v.SetDefault("IMAGE_MAX_BYTES", 5*1024*1024)
	v.SetDefault("IMAGE_STORE", "local")
	v.SetDefault("UPLOAD_DIR", "uploads/images")
	v.SetDefault("S3_PREFIX", "lab-reports")
	v.SetDefault("EVENTS_BACKEND", "none")
	v.SetDefault("KAFKA_TOPIC", "medication-plans")
	v.SetDefault("METRIC_RATE_LIMIT", 10)
	v.SetDefault("METRIC_RATE_WINDOW", "1m")
}

// LoadConfig loads the environment variables (optionally from a .env file) and
// returns a singleton Config instance.
func LoadConfig() *Config {
	once.Do(func() {
		// A missing .env is fine; the process environment still applies.
		_ = godotenv.Load()

		v := viper.New()
		v.AutomaticEnv()
		setDefaults(v)

		config = &Config{
			AppName:             v.GetString("APPNAME"),
			AppEnv:              v.GetString("APPENV"),
			AppPort:             uint16(v.GetUint("APPPORT")),
			GinMode:             v.GetString("GINMODE"),
			DBDriver:            strings.ToLower(v.GetString("DBDRIVER")),
			DBHost:              v.GetString("DBHOST"),
			DBPort:              uint16(v.GetUint("DBPORT")),
			DBName:              v.GetString("DBNAME"),
			DBUser:              v.GetString("DBUSER"),
			DBPass:              v.GetString("DBPASS"),
			DBSSLMode:           v.GetString("DBSSLMODE"),
			DBMaxConns:          v.GetInt("DBMAXCONNS"),
			QueryTimeout:        v.GetDuration("QUERY_TIMEOUT"),
			RequestTimeout:      v.GetDuration("REQUEST_TIMEOUT"),
			JWTSecret:           v.GetString("JWTSECRET"),
			AuthEnabled:         v.GetBool("AUTH_ENABLED"),
			DosageDefault:       v.GetFloat64("DOSAGE_DEFAULT"),
			DosageHighThreshold: v.GetFloat64("DOSAGE_HIGH_THRESHOLD"),
			DosageLowThreshold:  v.GetFloat64("DOSAGE_LOW_THRESHOLD"),
			DosageStep:          v.GetFloat64("DOSAGE_STEP"),
			ImageMaxBytes:       v.GetInt64("IMAGE_MAX_BYTES"),
			ImageStore:          strings.ToLower(v.GetString("IMAGE_STORE")),
			UploadDir:           v.GetString("UPLOAD_DIR"),
			S3Bucket:            v.GetString("S3_BUCKET"),
			S3Prefix:            v.GetString("S3_PREFIX"),
			EventsBackend:       strings.ToLower(v.GetString("EVENTS_BACKEND")),
			KafkaBrokers:        splitList(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:          v.GetString("KAFKA_TOPIC"),
			SQSQueueName:        v.GetString("SQS_QUEUE_NAME"),
			MetricRateLimit:     v.GetInt("METRIC_RATE_LIMIT"),
			MetricRateWindow:    v.GetDuration("METRIC_RATE_WINDOW"),
		}
	})
	return config
}

// ResetConfigForTest drops the cached singleton so the next LoadConfig re-reads the environment.
func ResetConfigForTest() {
	config = nil
	once = sync.Once{}
}

// IsTest reports whether the application runs against the in-memory test store.
func (c *Config) IsTest() bool {
	return c.AppEnv == "test"
}

// IsDev reports whether the application runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "development"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DSN builds the data source name for the configured driver.
func (c *Config) DSN() (string, error) {
	switch c.DBDriver {
	case "postgres", "postgresql":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName, c.DBSSLMode), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName), nil
	default:
		return "", fmt.Errorf("unsupported DBDRIVER %q", c.DBDriver)
	}
}

// ConnectDatabase opens the relational store using the configuration values.
// With APPENV=test an in-memory sqlite database is used instead.
func ConnectDatabase() (*gorm.DB, error) {
	cfg := LoadConfig()
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	if cfg.IsTest() {
		dialector = sqlite.Open("file::memory:?cache=shared")
	} else {
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		if cfg.DBDriver == "mysql" {
			dialector = mysql.Open(dsn)
		} else {
			dialector = postgres.Open(dsn)
		}
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.IsTest() {
		// The in-memory database lives only as long as its single connection.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	if cfg.DBMaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxConns)
	}
	sqlDB.SetConnMaxIdleTime(30 * time.Second)

	return db, nil
}
