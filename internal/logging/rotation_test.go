package logging

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const oneMB = 1 << 20

func TestNewRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", LogFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("previous\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rw, err := NewRotatingWriter(path, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	if got := rw.CurrentSize(); got != int64(len("previous\n")) {
		t.Errorf("CurrentSize() = %d, want existing file size", got)
	}
	if rw.FilePath() != path {
		t.Errorf("FilePath() = %q", rw.FilePath())
	}
}

func TestRotatingWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LogFileName)
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatal(err)
	}

	chunk := bytes.Repeat([]byte("x"), oneMB/2+1)
	for range 4 {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}

	if got := rw.Rotations(); got != 3 {
		t.Errorf("Rotations() = %d, want 3", got)
	}
	for _, name := range []string{LogFileName, LogFileName + ".1", LogFileName + ".2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, LogFileName+".3")); !os.IsNotExist(err) {
		t.Error("backups beyond MaxBackups should be removed")
	}
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	dir := t.TempDir()
	rw, err := NewRotatingWriter(filepath.Join(dir, LogFileName), RotationConfig{MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	chunk := bytes.Repeat([]byte("y"), oneMB-10)
	for range 3 {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatal(err)
		}
	}
	rw.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, LogFileName+".*"))
	if len(matches) != 0 {
		t.Errorf("no backups expected, found %v", matches)
	}
}

func TestRotatingWriter_Compression(t *testing.T) {
	dir := t.TempDir()
	rw, err := NewRotatingWriter(filepath.Join(dir, LogFileName), RotationConfig{MaxSizeMB: 1, MaxBackups: 1, Compress: true})
	if err != nil {
		t.Fatal(err)
	}
	var reported []error
	rw.OnError(func(err error) { reported = append(reported, err) })

	first := append(bytes.Repeat([]byte("a"), oneMB-1), '\n')
	if _, err := rw.Write(first); err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Write([]byte("after rotation\n")); err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}
	if len(reported) != 0 {
		t.Fatalf("unexpected rotation errors: %v", reported)
	}

	gz := filepath.Join(dir, LogFileName+".1.gz")
	f, err := os.Open(gz)
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, first) {
		t.Errorf("decompressed backup has %d bytes, want %d", len(data), len(first))
	}
	if _, err := os.Stat(filepath.Join(dir, LogFileName+".1")); !os.IsNotExist(err) {
		t.Error("uncompressed backup should be removed after compression")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), LogFileName), DefaultRotationConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync after Close should be a no-op, got %v", err)
	}
}

func TestRotatingWriter_Concurrency(t *testing.T) {
	dir := t.TempDir()
	rw, err := NewRotatingWriter(filepath.Join(dir, LogFileName), RotationConfig{MaxSizeMB: 1, MaxBackups: 5})
	if err != nil {
		t.Fatal(err)
	}

	line := []byte(strings.Repeat("z", 1023) + "\n")
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 300 {
				if _, err := rw.Write(line); err != nil {
					t.Errorf("Write failed: %v", err)
					return
				}
			}
		})
	}
	wg.Wait()
	rw.Close()

	if rw.Rotations() < 1 {
		t.Error("2.4MB of writes at a 1MB limit should rotate")
	}
}

func TestNewLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLoggerWithRotation(dir, LevelDebug, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewLoggerWithRotation failed: %v", err)
	}

	big := strings.Repeat("p", 4096)
	for range 400 {
		logger.WithComponent("test").Debug("filler", "payload", big)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, LogFileName+".1")); err != nil {
		t.Errorf("expected a rotated backup: %v", err)
	}

	stderr, err := NewLoggerWithRotation("", LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("stderr logger: %v", err)
	}
	stderr.Close()
}

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()
	if cfg.MaxSizeMB != 10 || cfg.MaxBackups != 3 || cfg.Compress {
		t.Errorf("DefaultRotationConfig() = %+v", cfg)
	}
}
