package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Feeds          []string
	OutputPath     string
	CalendarName   string
	ProductID      string
	Timezone       *time.Location
	SourceName     string
	FetchTimeout   time.Duration
	DatabasePath   string
	Schedule       string
	ServeAddr      string
	TelegramToken  string
	TelegramChatID int64
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when it exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	feeds := DefaultFeeds
	if path := os.Getenv("FEEDS_FILE"); path != "" {
		f, err := LoadFeedsFile(path)
		if err != nil {
			return nil, fmt.Errorf("invalid FEEDS_FILE: %w", err)
		}
		feeds = f
	}

	outputPath := os.Getenv("OUTPUT_PATH")
	if outputPath == "" {
		outputPath = "truckee_unified.ics"
	}

	calName := os.Getenv("CALENDAR_NAME")
	if calName == "" {
		calName = "Town of Truckee - All Events"
	}

	prodID := os.Getenv("CALENDAR_PRODID")
	if prodID == "" {
		prodID = "-//Truckee Unified Calendar//EN"
	}

	tzName := os.Getenv("CALENDAR_TIMEZONE")
	if tzName == "" {
		tzName = "America/Los_Angeles"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid CALENDAR_TIMEZONE: %w", err)
	}

	sourceName := os.Getenv("CALENDAR_SOURCE_NAME")
	if sourceName == "" {
		sourceName = "Town of Truckee"
	}

	timeout := 30 * time.Second
	if t := os.Getenv("FETCH_TIMEOUT"); t != "" {
		timeout, err = time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("invalid FETCH_TIMEOUT: must be positive")
		}
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	var chatID int64
	if c := os.Getenv("TELEGRAM_CHAT_ID"); c != "" {
		chatID, err = strconv.ParseInt(c, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a number")
		}
	}
	if (token == "") != (chatID == 0) {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	return &Config{
		Feeds:          feeds,
		OutputPath:     outputPath,
		CalendarName:   calName,
		ProductID:      prodID,
		Timezone:       tz,
		SourceName:     sourceName,
		FetchTimeout:   timeout,
		DatabasePath:   os.Getenv("DATABASE_PATH"),
		Schedule:       os.Getenv("SCHEDULE"),
		ServeAddr:      os.Getenv("SERVE_ADDR"),
		TelegramToken:  token,
		TelegramChatID: chatID,
	}, nil
}

// NotificationsEnabled reports whether run summaries go to Telegram
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// LongRunning reports whether the process keeps running after the first merge
func (c *Config) LongRunning() bool {
	return c.Schedule != "" || c.ServeAddr != ""
}
