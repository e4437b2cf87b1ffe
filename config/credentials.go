package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

const baseCredPath = "technews/creds.toml"

// Credentials holds all application credentials
type Credentials struct {
	LinkedIn LinkedInCredentials `toml:"linkedin"`
	NewsAPI  NewsAPICredentials  `toml:"newsapi"`
	Gemini   GeminiCredentials   `toml:"gemini"`
	Telegram TelegramCredentials `toml:"telegram"`
}

// LinkedInCredentials holds the OAuth application and member credentials used for publishing
type LinkedInCredentials struct {
	ClientID     string `toml:"client_id" env:"LINKEDIN_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"LINKEDIN_CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"LINKEDIN_REDIRECT_URI"`
	AuthorURN    string `toml:"author_urn" env:"LINKEDIN_AUTHOR_URN"`
	AccessToken  string `toml:"access_token" env:"LINKEDIN_ACCESS_TOKEN"`
	RefreshToken string `toml:"refresh_token" env:"LINKEDIN_REFRESH_TOKEN"`
}

// NewsAPICredentials holds the keyword search API key. Empty disables the source.
type NewsAPICredentials struct {
	APIKey string `toml:"api_key" env:"NEWS_API_KEY"`
}

// TelegramCredentials holds Telegram API credentials
type TelegramCredentials struct {
	AppID       int    `toml:"api_id" env:"TELEGRAM_API_ID"`
	AppHash     string `toml:"api_hash" env:"TELEGRAM_API_HASH"`
	PhoneNumber string `toml:"phone" env:"TELEGRAM_PHONE"`
}

// IsValid checks if telegram credentials are fully populated
func (tc TelegramCredentials) IsValid() bool {
	return tc.AppID != 0 && tc.AppHash != "" && tc.PhoneNumber != ""
}

// GeminiCredentials holds Google Gemini API credentials
type GeminiCredentials struct {
	APIKey string `toml:"api_key" env:"GEMINI_API_KEY"`
	Model  string `toml:"model" env:"GEMINI_MODEL"` // e.g., "gemini-2.0-flash"
}

// IsValid checks if Gemini credentials are fully populated
func (gc GeminiCredentials) IsValid() bool {
	return gc.APIKey != "" && gc.Model != ""
}

// ReadCredentials reads credentials from the specified path
func ReadCredentials(path string) (Credentials, error) {
	var creds Credentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}

	if _, err := toml.Decode(string(data), &creds); err != nil {
		return creds, fmt.Errorf("failed to decode credentials at %s: %w", path, err)
	}

	return creds, nil
}

// LoadCredentials reads the credentials file when present and applies environment overrides.
// A missing file is not an error: every credential may come from the environment.
func LoadCredentials(path string) (Credentials, error) {
	creds, err := ReadCredentials(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return creds, err
	}
	if err := cleanenv.ReadEnv(&creds); err != nil {
		return creds, fmt.Errorf("failed to read credentials from environment: %w", err)
	}
	return creds, nil
}

// WriteCredentials writes credentials to the specified path
func WriteCredentials(path string, creds Credentials) error {
	blob, err := toml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	basePath := filepath.Dir(path)
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return fmt.Errorf("failed to create credentials directory at '%s': %w", basePath, err)
	}

	// Write with restrictive permissions (only owner can read/write)
	if err := os.WriteFile(path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file at '%s': %w", path, err)
	}

	return nil
}

// DefaultCredentialsPath returns the default path for credentials file
func DefaultCredentialsPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return filepath.Join(xdgHome, baseCredPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return filepath.Join(home, ".config", baseCredPath)
	}

	panic("unable to determine credentials file path")
}

// PromptTelegramCredentials prompts the user for Telegram credentials
func PromptTelegramCredentials() (TelegramCredentials, error) {
	var creds TelegramCredentials

	fmt.Println("Telegram credentials not found. Please provide the following information:")
	fmt.Println()
	fmt.Println("To get API_ID and API_HASH:")
	fmt.Println("  1. Go to https://my.telegram.org")
	fmt.Println("  2. Log in with your phone number")
	fmt.Println("  3. Click 'API development tools'")
	fmt.Println("  4. Create a new application")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Enter API_ID: ")
	appIDStr, err := reader.ReadString('\n')
	if err != nil {
		return creds, fmt.Errorf("failed to read API_ID: %w", err)
	}
	appIDStr = strings.TrimSpace(appIDStr)
	if _, err := fmt.Sscanf(appIDStr, "%d", &creds.AppID); err != nil {
		return creds, fmt.Errorf("invalid API_ID format: %w", err)
	}

	fmt.Print("Enter API_HASH: ")
	appHash, err := reader.ReadString('\n')
	if err != nil {
		return creds, fmt.Errorf("failed to read API_HASH: %w", err)
	}
	creds.AppHash = strings.TrimSpace(appHash)

	fmt.Print("Enter phone number in international format (e.g. +1234567890): ")
	phone, err := reader.ReadString('\n')
	if err != nil {
		return creds, fmt.Errorf("failed to read phone number: %w", err)
	}
	creds.PhoneNumber = strings.TrimSpace(phone)

	if !creds.IsValid() {
		return creds, fmt.Errorf("all credential fields are required")
	}

	return creds, nil
}

// LoadOrPromptTelegramCredentials loads telegram credentials or prompts for them
func LoadOrPromptTelegramCredentials(credPath string) (TelegramCredentials, error) {
	creds, err := ReadCredentials(credPath)
	if err == nil && creds.Telegram.IsValid() {
		return creds.Telegram, nil
	}

	telegramCreds, err := PromptTelegramCredentials()
	if err != nil {
		return TelegramCredentials{}, err
	}

	// Save credentials next to whatever else the file already held
	creds.Telegram = telegramCreds
	if err := WriteCredentials(credPath, creds); err != nil {
		return telegramCreds, fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("Credentials saved to %s\n", credPath)
	fmt.Println()

	return telegramCreds, nil
}
