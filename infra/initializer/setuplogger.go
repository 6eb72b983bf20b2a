package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/travelagency/backoffice/pkg/config"
)

var (
	infoColor  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warnColor  = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	errorColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	debugColor = lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
)

// logStyles highlights the keys the accounting services log most.
func logStyles() *log.Styles {
	styles := log.DefaultStyles()
	levels := map[log.Level]struct {
		label string
		color lipgloss.AdaptiveColor
	}{
		log.ErrorLevel: {"ERR", errorColor},
		log.WarnLevel:  {"WRN", warnColor},
		log.InfoLevel:  {"INF", infoColor},
		log.DebugLevel: {"DBG", debugColor},
	}
	for level, s := range levels {
		styles.Levels[level] = lipgloss.NewStyle().
			SetString(s.label).
			Bold(true).
			Padding(0, 1).
			Foreground(s.color)
	}

	styles.Keys["error"] = lipgloss.NewStyle().Foreground(errorColor)
	styles.Values["error"] = lipgloss.NewStyle().Bold(true)
	for _, key := range []string{"payment_id", "movement_id", "settlement_movement_id", "account_id"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(infoColor)
	}
	for _, key := range []string{"amount", "shortfall", "delta"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(warnColor)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}
	styles.Keys["service"] = lipgloss.NewStyle().Foreground(debugColor)
	return styles
}

func setupLogger(cfg *config.Log) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text", TimeFormat: "2006-01-02 15:04:05"}
	}
	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(logStyles())

	slogger := slog.New(logger)
	slog.SetDefault(slogger)
	return slogger
}
