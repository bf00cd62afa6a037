package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_ComponentAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, c := New("assets", Options{Level: "warn", Out: &buf})
	defer c.Close()

	log.Info("hidden")
	log.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "component=assets") {
		t.Fatalf("missing entry or component field: %q", out)
	}
}

func TestNew_FileCopy(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "editor.log")
	log, c := New("server", Options{File: path, Out: &buf, JSON: true})
	log.WithField("map", "m1").Info("opened")
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"map":"m1"`) || !strings.Contains(buf.String(), "opened") {
		t.Fatalf("file=%q stdout=%q", b, buf.String())
	}
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New("x", Options{Level: "loud", Out: &buf})
	log.Info("ok")
	if !strings.Contains(buf.String(), "ok") {
		t.Fatalf("info not logged: %q", buf.String())
	}
}
