package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

var (
	mu     sync.Mutex
	writer io.Writer // nil means os.Stdout
)

// SetOutput redirects all log output. nil restores os.Stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	writer = w
	mu.Unlock()
}

// out is resolved on every call so tests can swap os.Stdout.
func out() io.Writer {
	if writer != nil {
		return writer
	}
	return os.Stdout
}

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func paint(color, s string) string {
	if !colorEnabled() {
		return s
	}
	return color + s + reset
}

func write(level, color, tag, msg string) {
	mu.Lock()
	defer mu.Unlock()
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(out(), "%s %s %-8s %s\n",
		paint(dim, ts),
		paint(color, fmt.Sprintf("%-4s", level)),
		paint(bold, "["+tag+"]"),
		msg,
	)
}

// Info logs a neutral progress message.
func Info(tag, msg string) { write("INFO", cyan, tag, msg) }

// Success logs a completed step.
func Success(tag, msg string) { write("OK", green, tag, msg) }

// Warn logs a recoverable problem.
func Warn(tag, msg string) { write("WARN", yellow, tag, msg) }

// Error logs a failure.
func Error(tag, msg string) { write("ERR", red, tag, msg) }

// Banner prints the startup header.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	mu.Lock()
	defer mu.Unlock()
	line := strings.Repeat("=", 44)
	fmt.Fprintln(out(), paint(cyan, line))
	fmt.Fprintf(out(), "  %s  %s\n", paint(bold, "EVE Nerd route planner"), paint(dim, version))
	fmt.Fprintln(out(), paint(cyan, line))
}

// Section prints a heading for a group of Stats lines.
func Section(title string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out(), "\n%s\n", paint(bold, "-- "+title+" --"))
}

// Stats prints one key/value line. Integers get thousands separators.
func Stats(key string, value interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out(), "  %-20s %s\n", key+":", paint(green, format(value)))
}

// Duration logs how long a step took, in a human friendly form.
func Duration(tag, what string, d time.Duration) {
	Info(tag, fmt.Sprintf("%s in %s", what, d.Round(time.Millisecond)))
}

func format(v interface{}) string {
	switch n := v.(type) {
	case int:
		return humanize.Comma(int64(n))
	case int32:
		return humanize.Comma(int64(n))
	case int64:
		return humanize.Comma(n)
	case uint64:
		return humanize.Comma(int64(n))
	case float64:
		return humanize.CommafWithDigits(n, 2)
	case time.Time:
		return humanize.Time(n)
	default:
		return fmt.Sprint(v)
	}
}
