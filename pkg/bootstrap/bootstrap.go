// Package bootstrap wires configuration, logging, error tracking, and the
// conversion pipeline into a ready-to-use Service. Both CLI tools and any
// embedding collaborator go through here so they share one setup path.
package bootstrap

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	shared "github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/fitcheck"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/fitconv"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/workout"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/infrastructure/sentry"
)

// Config holds standard configuration for all entry points.
type Config struct {
	OutputDir    string
	SerialNumber uint32
	Environment  string
	SentryDSN    string
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() *Config {
	outputDir := os.Getenv("FIT_OUTPUT_DIR")
	if outputDir == "" {
		outputDir = shared.DefaultOutputDir
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &Config{
		OutputDir:    outputDir,
		SerialNumber: loadSerialNumber(),
		Environment:  env,
		SentryDSN:    os.Getenv("SENTRY_DSN"),
	}
}

// loadSerialNumber reads DEVICE_SERIAL_NUMBER. Unset falls back to the
// shared default; an unparseable value gets a UUID-derived serial instead.
// Garmin only needs the value to be non-zero and consistent within one file.
func loadSerialNumber() uint32 {
	raw := os.Getenv("DEVICE_SERIAL_NUMBER")
	if raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 32); err == nil && n > 0 {
			return uint32(n)
		}
		slog.Warn("Invalid DEVICE_SERIAL_NUMBER, generating one", "value", raw)
	} else {
		return shared.DefaultSerialNumber
	}
	id := uuid.New()
	return binary.BigEndian.Uint32(id[0:4])
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message.
type ComponentHandler struct {
	slog.Handler
	component string
}

// WithGroup implements slog.Handler.
func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

// WithAttrs implements slog.Handler.
func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newComp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			newComp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: newComp,
	}
}

// Handle implements slog.Handler.
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})

	if comp != "" {
		newMsg := fmt.Sprintf("[%s] %s", comp, r.Message)
		newRecord := slog.NewRecord(r.Time, r.Level, newMsg, r.PC)
		// The component attr stays in the structured payload for filtering.
		r.Attrs(func(a slog.Attr) bool {
			newRecord.AddAttrs(a)
			return true
		})
		r = newRecord
	}

	return h.Handler.Handle(ctx, r)
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

// InitLogger configures the process-wide structured logger.
func InitLogger() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()})
	slog.SetDefault(slog.New(&ComponentHandler{Handler: handler}))
}

// NewLogger creates a configured logger instance for one component.
func NewLogger(component string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()})
	return slog.New(&ComponentHandler{Handler: handler}).With("component", component)
}

// Service holds the initialized pipeline dependencies.
type Service struct {
	Converter *fitconv.Converter
	Validator *fitcheck.Validator
	Config    *Config
}

// NewService initializes logging, error tracking, and the pipeline.
func NewService() (*Service, error) {
	InitLogger()
	cfg := LoadConfig()

	slog.Info("Initializing service", "output_dir", cfg.OutputDir, "environment", cfg.Environment)

	if err := sentry.Init(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	}, slog.Default()); err != nil {
		return nil, err
	}

	conv := fitconv.NewConverter(cfg.OutputDir)
	conv.SerialNumber = cfg.SerialNumber

	return &Service{
		Converter: conv,
		Validator: fitcheck.New(),
		Config:    cfg,
	}, nil
}

// ConvertAndValidate runs the whole pipeline for one workout. Fatal
// conversion errors are reported to Sentry before being returned.
func (s *Service) ConvertAndValidate(in *workout.Input) (*fitconv.Result, *fitcheck.Result, error) {
	res, err := s.Converter.Convert(in)
	if err != nil {
		ctx := map[string]interface{}{}
		if in != nil {
			ctx["workout_type"] = in.WorkoutType
			ctx["data_points"] = len(in.Samples)
		}
		sentry.CaptureException(err, ctx, slog.Default())
		return nil, nil, err
	}
	report := s.Validator.ValidateFile(res.Path)
	if !report.IsValid {
		// The file was produced but Garmin may reject it; worth a ping
		// even though conversion itself succeeded.
		sentry.CaptureMessage("produced FIT file failed validation", sentrygo.LevelWarning,
			map[string]interface{}{
				"path":   res.Path,
				"errors": len(report.Errors()),
				"score":  report.CompatibilityScore,
			}, slog.Default())
	}
	return res, report, nil
}
