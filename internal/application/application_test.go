package application

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/vaeth/layman/internal/config"
	"github.com/vaeth/layman/internal/makeconf"
)

// syncBuffer guards a bytes.Buffer so tests can read output produced by the
// Watch goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func emptyEnv(string) (string, bool) {
	return "", false
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestApp(t *testing.T, makeConfContent string) (*App, *syncBuffer, string) {
	t.Helper()

	dir := t.TempDir()
	makeConfPath := filepath.Join(dir, "make.conf")
	writeFile(t, makeConfPath, makeConfContent)

	cfg := config.Config{
		MakeConfPath: makeConfPath,
		OverlaysPath: filepath.Join(dir, "overlays.xml"),
		LogLevel:     "info",
		DumpFormat:   config.FormatConf,
		WatchRate:    20,
		WatchBurst:   1,
	}

	out := &syncBuffer{}
	app := New(cfg, zaptest.NewLogger(t), out, WithLoaderOptions(makeconf.WithLookupEnv(emptyEnv)))
	return app, out, dir
}

func TestGet(t *testing.T) {
	app, out, _ := newTestApp(t, "CFLAGS=\"-O2 -pipe\"\nCXXFLAGS=\"${CFLAGS}\"\n")

	if err := app.Get("CXXFLAGS"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got := out.String(); got != "-O2 -pipe\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	app, _, _ := newTestApp(t, "CFLAGS=-O2\n")

	if err := app.Get("DISTDIR"); !errors.Is(err, ErrKeyNotAssigned) {
		t.Fatalf("expected ErrKeyNotAssigned, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	app, out, _ := newTestApp(t, "CHOST=x86_64-pc-linux-gnu\nCFLAGS=-O2\nUSE=alsa\n")

	if err := app.Keys(); err != nil {
		t.Fatalf("Keys returned error: %v", err)
	}
	want := "CHOST\nCFLAGS\nUSE\n"
	if got := out.String(); got != want {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestDumpFormats(t *testing.T) {
	const conf = "PORTDIR=/usr/portage\nMAKEOPTS=-j4\n"

	t.Run("conf", func(t *testing.T) {
		app, out, _ := newTestApp(t, conf)
		if err := app.Dump(); err != nil {
			t.Fatalf("Dump returned error: %v", err)
		}
		if got := out.String(); got != conf {
			t.Fatalf("unexpected conf dump: %q", got)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		app, out, _ := newTestApp(t, conf)
		app.cfg.DumpFormat = config.FormatYAML
		if err := app.Dump(); err != nil {
			t.Fatalf("Dump returned error: %v", err)
		}
		if !strings.Contains(out.String(), "PORTDIR: /usr/portage") {
			t.Fatalf("unexpected yaml dump: %q", out.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		app, out, _ := newTestApp(t, conf)
		app.cfg.DumpFormat = config.FormatJSON
		if err := app.Dump(); err != nil {
			t.Fatalf("Dump returned error: %v", err)
		}
		if !strings.Contains(out.String(), "\"MAKEOPTS\": \"-j4\"") {
			t.Fatalf("unexpected json dump: %q", out.String())
		}
	})
}

func TestCheckWithoutOverlayList(t *testing.T) {
	app, out, _ := newTestApp(t, "CFLAGS=-O2\n")

	if err := app.Check(); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if !strings.Contains(out.String(), "ok (1 keys)") {
		t.Fatalf("unexpected check output: %q", out.String())
	}
}

func TestCheckWithOverlayList(t *testing.T) {
	app, out, dir := newTestApp(t, "CFLAGS=-O2\n")

	doc := `<overlays>
  <overlay name="sunrise" src="git://git.example.org/sunrise.git" contact="sunrise@example.org">
    <description>Community ebuilds</description>
  </overlay>
</overlays>`
	writeFile(t, filepath.Join(dir, "overlays.xml"), doc)

	if err := app.Check(); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if !strings.Contains(out.String(), "ok (1 overlays)") {
		t.Fatalf("unexpected check output: %q", out.String())
	}
}

func TestCheckFailsOnBrokenConfig(t *testing.T) {
	app, _, _ := newTestApp(t, "FOO bar\n")

	if err := app.Check(); !errors.Is(err, makeconf.ErrMalformedLine) {
		t.Fatalf("expected ErrMalformedLine, got %v", err)
	}
}

func TestOverlays(t *testing.T) {
	app, out, dir := newTestApp(t, "CFLAGS=-O2\n")

	doc := `<overlays>
  <overlay name="sunrise" src="git://git.example.org/sunrise.git" contact="sunrise@example.org" priority="10">
    <description>Community ebuilds</description>
  </overlay>
  <overlay name="gnome" src="git://git.example.org/gnome.git" contact="gnome@example.org" status="official">
    <description>GNOME overlay</description>
  </overlay>
</overlays>`
	writeFile(t, filepath.Join(dir, "overlays.xml"), doc)

	if err := app.Overlays(); err != nil {
		t.Fatalf("Overlays returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "sunrise") {
		t.Fatalf("expected sunrise first (priority 10), got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "*") {
		t.Fatalf("expected official marker for gnome, got %q", lines[1])
	}
}

func TestWatchPrintsChanges(t *testing.T) {
	app, out, _ := newTestApp(t, "USE=alsa\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- app.Watch(ctx)
	}()

	// Give the watcher time to arm before rewriting the file.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, app.cfg.MakeConfPath, "USE=xml\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), "USE=xml") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Watch did not stop after cancellation")
	}

	if !strings.Contains(out.String(), "USE=xml") {
		t.Fatalf("expected change to be printed, got %q", out.String())
	}
}
