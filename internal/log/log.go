package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sunbk201/xlink/internal/config"
	"github.com/sunbk201/xlink/internal/rewrite"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetLogConf installs the default logger: stdout and a rotating file under
// GetLogDir, plus any extra writers such as a Broadcaster.
func SetLogConf(level string, extra ...io.Writer) {
	writers := []io.Writer{
		os.Stdout,
		&lumberjack.Logger{
			Filename:   GetLogFilePath(),
			MaxSize:    5, // megabytes
			MaxBackups: 5,
			MaxAge:     7, // days
			LocalTime:  true,
			Compress:   true,
		},
	}
	writers = append(writers, extra...)
	slog.SetDefault(NewLogger(io.MultiWriter(writers...), level))
}

// NewLogger builds the text logger used everywhere, writing to w.
func NewLogger(w io.Writer, level string) *slog.Logger {
	loc := LoadLocalLocation()
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				t := a.Value.Time().In(loc)
				return slog.String(slog.TimeKey, t.Format("2006-01-02 15:04:05"))
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func LogHeader(version string, cfg *config.Config) {
	slog.Info("xlink started", "version", version, "", cfg)
	slog.Info("Host", GetOSInfo()...)
}

// LogOutcome reports one evaluation. Rewrites go to info, everything else to
// debug so clipboard polling stays quiet.
func LogOutcome(source string, o rewrite.Outcome) {
	if o.Changed() {
		slog.Info("Link rewritten", slog.String("source", source), slog.Any("outcome", o))
		return
	}
	slog.Debug("Link unchanged", slog.String("source", source), slog.Any("outcome", o))
}

// LoadLocalLocation tries to detect and load the system local timezone from
// `/etc/localtime` or `/etc/TZ`. Compatible with OpenWrt and normal Linux.
func LoadLocalLocation() *time.Location {
	if _, err := os.Stat("/etc/localtime"); err == nil {
		if loc, _ := time.LoadLocation("Local"); loc != nil {
			return loc
		}
	}
	if data, err := os.ReadFile("/etc/TZ"); err == nil {
		tz := strings.TrimSpace(string(data))
		if strings.HasPrefix(tz, "CST-8") {
			return time.FixedZone("CST", 8*3600)
		}
		if strings.HasPrefix(tz, "UTC") {
			return time.UTC
		}
	}
	return time.Local
}
