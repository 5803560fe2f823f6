package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings.
type Config struct {
	LogLevel string
	DevMode  bool
}

// Logger is the logging contract used across the service.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})
	With(fields ...zap.Field) Logger
	Logger() *zap.Logger
	Sync() error
}

// AppLogger is the zap backed Logger.
type AppLogger struct {
	cfg    *Config
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewAppLogger creates a logger for cfg. InitLogger must be called before
// use.
func NewAppLogger(cfg *Config) *AppLogger {
	return &AppLogger{cfg: cfg}
}

var levels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

func (l *AppLogger) level() zapcore.Level {
	if lvl, ok := levels[strings.ToLower(l.cfg.LogLevel)]; ok {
		return lvl
	}
	return zapcore.InfoLevel
}

// InitLogger builds the underlying zap logger: a console encoder in dev
// mode, JSON otherwise.
func (l *AppLogger) InitLogger() {
	var encoderCfg zapcore.EncoderConfig
	if l.cfg.DevMode {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
	}
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if l.cfg.DevMode {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), zap.NewAtomicLevelAt(l.level()))
	l.logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	l.sugar = l.logger.Sugar()
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	z := zap.NewNop()
	return &AppLogger{cfg: &Config{}, logger: z, sugar: z.Sugar()}
}

// New wraps an existing zap logger.
func New(z *zap.Logger) Logger {
	return &AppLogger{cfg: &Config{}, logger: z, sugar: z.Sugar()}
}

func (l *AppLogger) Debug(msg string, fields ...zap.Field) { l.logger.Debug(msg, fields...) }
func (l *AppLogger) Info(msg string, fields ...zap.Field)  { l.logger.Info(msg, fields...) }
func (l *AppLogger) Warn(msg string, fields ...zap.Field)  { l.logger.Warn(msg, fields...) }
func (l *AppLogger) Error(msg string, fields ...zap.Field) { l.logger.Error(msg, fields...) }

func (l *AppLogger) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }
func (l *AppLogger) Infof(template string, args ...interface{})  { l.sugar.Infof(template, args...) }
func (l *AppLogger) Warnf(template string, args ...interface{})  { l.sugar.Warnf(template, args...) }
func (l *AppLogger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }
func (l *AppLogger) Fatalf(template string, args ...interface{}) { l.sugar.Fatalf(template, args...) }

func (l *AppLogger) With(fields ...zap.Field) Logger {
	child := l.logger.With(fields...)
	return &AppLogger{cfg: l.cfg, logger: child, sugar: child.Sugar()}
}

func (l *AppLogger) Logger() *zap.Logger { return l.logger }

func (l *AppLogger) Sync() error { return l.logger.Sync() }
