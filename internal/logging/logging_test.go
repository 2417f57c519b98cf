package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func newTestLogger(level Level) (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetLevel(log.DebugLevel)
	logger.SetFormatter(&Formatter{Program: "virsh", PID: 42, Level: level})
	return logger, &buf
}

func TestFormatter(t *testing.T) {
	logger, _ := newTestLogger(LevelDebug)
	entry := log.NewEntry(logger)
	entry.Time = time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)
	entry.Level = log.WarnLevel
	entry.Message = "connection lost"
	entry.Data = log.Fields{"uri": "qemu:///system"}

	got, err := logger.Formatter.Format(entry)
	if err != nil {
		t.Fatalf("Format() failed: %v", err)
	}
	want := "[2024.03.07 09:05:01 virsh 42] WARNING connection lost uri=qemu:///system\n"
	if string(got) != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormatter_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		want  []string
	}{
		{name: "debug", level: LevelDebug, want: []string{"DEBUG d", "INFO i", "NOTICE n", "WARNING w", "ERROR e"}},
		{name: "notice", level: LevelNotice, want: []string{"NOTICE n", "WARNING w", "ERROR e"}},
		{name: "error", level: LevelError, want: []string{"ERROR e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger(tt.level)
			logger.Debug("d")
			logger.Info("i")
			Notice(logger, "n")
			logger.Warn("w")
			logger.Error("e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(tt.want), buf.String())
			}
			for i, line := range lines {
				if !strings.HasSuffix(line, "] "+tt.want[i]) {
					t.Errorf("line %d = %q, want suffix %q", i, line, tt.want[i])
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "0", want: LevelDebug},
		{in: " 3 ", want: LevelWarning},
		{in: "4", want: LevelError},
		{in: "5", want: DefaultLevel, wantErr: true},
		{in: "-1", want: DefaultLevel, wantErr: true},
		{in: "loud", want: DefaultLevel, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "virsh.log")
	logger := log.New()

	closer, err := Setup(logger, path, LevelInfo)
	if err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	logger.Debug("hidden")
	logger.WithField("cmd", "list").Info("command")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	got := string(data)
	if strings.Contains(got, "hidden") {
		t.Errorf("debug entry written at info level: %q", got)
	}
	if !strings.Contains(got, "virsh ") || !strings.HasSuffix(got, "] INFO command cmd=list\n") {
		t.Errorf("log file = %q", got)
	}
}

func TestSetup_BadPath(t *testing.T) {
	logger := log.New()
	closer, err := Setup(logger, filepath.Join(t.TempDir(), "missing", "virsh.log"), LevelDebug)
	if err == nil {
		t.Fatal("Setup() succeeded, want error")
	}
	if closer == nil {
		t.Fatal("Setup() returned a nil closer")
	}
	logger.Error("dropped")
}
