package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// KMAAuthKey authorizes both remote KMA endpoints. When empty, the
	// remote collectors are disabled and only the sensor side runs.
	KMAAuthKey string

	// StationID selects the official station to compare against.
	StationID string

	// Remote endpoint URLs, overridable for testing.
	NearRealTimeURL string
	HourlyURL       string

	// SerialPort is the sensor device path; empty disables the sensor
	// collector. SerialBaud is the line rate.
	SerialPort string
	SerialBaud int

	// DBPath locates the SQLite database file.
	DBPath string

	// HTTPTimeout bounds each outbound KMA request.
	HTTPTimeout time.Duration

	// DisablePressure hides the pressure category from the HTTP API.
	DisablePressure bool

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.KMAAuthKey = os.Getenv("KMA_AUTH_KEY")
	cfg.StationID = getenvDefault("KMA_STATION_ID", "159")
	cfg.NearRealTimeURL = getenvDefault("KMA_NRT_URL",
		"https://apihub.kma.go.kr/api/typ02/openApi/VilageFcstInfoService_2.0/getUltraSrtNcst")
	cfg.HourlyURL = getenvDefault("KMA_HOURLY_URL",
		"https://apihub.kma.go.kr/api/typ01/url/kma_sfctm3.php")

	cfg.SerialPort = os.Getenv("SERIAL_PORT")
	cfg.SerialBaud = getenvInt("SERIAL_BAUD", 9600)

	cfg.DBPath = getenvDefault("DB_PATH", "weather.db")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.DisablePressure = getenvBool("DISABLE_PRESSURE", false)
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
