package main

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/config"
)

func TestVersionString(t *testing.T) {
	origCommit, origDate := commit, buildDate
	defer func() { commit, buildDate = origCommit, origDate }()

	commit, buildDate = "", ""
	if s := versionString(); !strings.HasSuffix(s, config.Version+"-dev") {
		t.Errorf("expected dev version string, got %q", s)
	}

	commit, buildDate = "abc1234", "2026-01-01"
	s := versionString()
	if !strings.Contains(s, "abc1234") || !strings.Contains(s, "2026-01-01") || strings.HasSuffix(s, "-dev") {
		t.Errorf("unexpected release version string %q", s)
	}
}

func TestConfigureLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantLevel     logrus.Level
		wantJSON      bool
	}{
		{"debug", "json", logrus.DebugLevel, true},
		{"WARN", "text", logrus.WarnLevel, false},
		{"bogus", "text", logrus.InfoLevel, false},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			l := logrus.New()
			configureLogger(l, tc.level, tc.format)

			if l.GetLevel() != tc.wantLevel {
				t.Errorf("level = %v, want %v", l.GetLevel(), tc.wantLevel)
			}

			if _, isJSON := l.Formatter.(*logrus.JSONFormatter); isJSON != tc.wantJSON {
				t.Errorf("json formatter = %v, want %v", isJSON, tc.wantJSON)
			}
		})
	}
}
