// Package logger is the tagged console logger used across hullscout.
// Every helper takes a short tag ("ESI", "SDE", "SCAN") that ends up as a
// structured attribute on the underlying slog record.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Err is the tint-aware error attribute.
var Err = tint.Err //nolint:gochecknoglobals

var (
	mu    sync.RWMutex
	out   io.Writer = os.Stdout
	level           = new(slog.LevelVar)
	base            = newLogger(os.Stdout)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// SetOutput redirects all logging to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	base = newLogger(w)
}

// SetDebug toggles debug-level records.
func SetDebug(on bool) {
	if on {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// L returns the current structured logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return out
}

func Debug(tag, msg string) { L().Debug(msg, slog.String("tag", tag)) }

func Info(tag, msg string) { L().Info(msg, slog.String("tag", tag)) }

func Success(tag, msg string) { L().Info(msg, slog.String("tag", tag), slog.Bool("ok", true)) }

func Warn(tag, msg string) { L().Warn(msg, slog.String("tag", tag)) }

func Error(tag, msg string) { L().Error(msg, slog.String("tag", tag)) }

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	w := writer()
	fmt.Fprintln(w, "  _   _       _ _ ____                  _")
	fmt.Fprintln(w, " | | | |_   _| | / ___|  ___ ___  _   _| |_")
	fmt.Fprintln(w, " | |_| | | | | | \\___ \\ / __/ _ \\| | | | __|")
	fmt.Fprintln(w, " |  _  | |_| | | |___) | (_| (_) | |_| | |_")
	fmt.Fprintln(w, " |_| |_|\\__,_|_|_|____/ \\___\\___/ \\__,_|\\__|")
	fmt.Fprintf(w, " hull deal finder %s\n\n", version)
}

// Section prints a section heading.
func Section(title string) {
	line := strings.Repeat("─", len(title)+4)
	fmt.Fprintf(writer(), "\n%s\n  %s\n%s\n", line, title, line)
}

// Stats prints an aligned key/value line, used under a Section.
func Stats(key string, value any) {
	fmt.Fprintf(writer(), "  %-22s %v\n", key+":", value)
}
