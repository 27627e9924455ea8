package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the server looks for its configuration
const DefaultPath = "config/config.yaml"

// Config represents the application configuration
type Config struct {
	Language  string `yaml:"language"`
	ModelSize string `yaml:"model_size"`
	Device    string `yaml:"device"`

	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Whisper struct {
		Python         string `yaml:"python"`
		Threads        int    `yaml:"threads"`
		Normalize      bool   `yaml:"normalize"`
		FFmpeg         string `yaml:"ffmpeg"`
		TimeoutMinutes int    `yaml:"timeout_minutes"`
	} `yaml:"whisper"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Storage struct {
		UploadDir string `yaml:"upload_dir"`
		TempDir   string `yaml:"temp_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes   int `yaml:"interval_minutes"`
		OrphanMaxAgeHours int `yaml:"orphan_max_age_hours"`
		TempMaxAgeHours   int `yaml:"temp_max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

// Default returns the configuration used for any key the file leaves out
func Default() *Config {
	c := &Config{
		Language:  "ja",
		ModelSize: "base",
		Device:    "cpu",
	}
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 8000
	c.Whisper.Python = "python"
	c.Whisper.FFmpeg = "ffmpeg"
	c.Whisper.TimeoutMinutes = 60
	c.Workers.Count = 1
	c.Storage.UploadDir = "uploads"
	c.Storage.TempDir = "temp"
	c.Storage.Database = "app.db"
	c.Cleanup.IntervalMinutes = 60
	c.Cleanup.OrphanMaxAgeHours = 24
	c.Cleanup.TempMaxAgeHours = 6
	c.GoogleDrive.CredentialsFile = "config/credentials.json"
	c.GoogleDrive.TokenFile = "config/token.json"
	c.GoogleDrive.FolderName = "Transcripts"
	c.Limits.MaxFileSizeMB = 500
	return c
}

// Load reads the YAML file at path over the defaults. Keys present in the
// file win; unknown keys are ignored. A missing file is created holding the
// defaults. The second return value reports whether the file was created.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := Save(path, cfg); err != nil {
			return nil, false, err
		}
		return cfg, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Save writes cfg as YAML, creating parent directories
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Language == "":
		return errors.New("config: language must not be empty")
	case c.ModelSize == "":
		return errors.New("config: model_size must not be empty")
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	case c.Workers.Count < 1:
		return fmt.Errorf("config: workers.count must be at least 1, got %d", c.Workers.Count)
	case c.Limits.MaxFileSizeMB < 1:
		return fmt.Errorf("config: limits.max_file_size_mb must be positive, got %d", c.Limits.MaxFileSizeMB)
	case c.Cleanup.IntervalMinutes < 1:
		return fmt.Errorf("config: cleanup.interval_minutes must be positive, got %d", c.Cleanup.IntervalMinutes)
	case c.Cleanup.OrphanMaxAgeHours < 1:
		return fmt.Errorf("config: cleanup.orphan_max_age_hours must be at least 1, got %d", c.Cleanup.OrphanMaxAgeHours)
	case c.Cleanup.TempMaxAgeHours < 1:
		return fmt.Errorf("config: cleanup.temp_max_age_hours must be at least 1, got %d", c.Cleanup.TempMaxAgeHours)
	case c.Storage.UploadDir == "" || c.Storage.Database == "":
		return errors.New("config: storage.upload_dir and storage.database are required")
	}
	return nil
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// WhisperTimeout returns the per-job transcription timeout, zero for none
func (c *Config) WhisperTimeout() time.Duration {
	return time.Duration(c.Whisper.TimeoutMinutes) * time.Minute
}

// MaxFileSize returns the upload limit in bytes
func (c *Config) MaxFileSize() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}
