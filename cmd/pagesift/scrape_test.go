package main

import "testing"

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("PAGESIFT_LOG_LEVEL", "warn")
	logLevel, logFormat = "debug", "text"
	defer func() { logLevel, logFormat = "", "" }()

	cfg := loadConfig()
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log config = %+v", cfg.Log)
	}
}
