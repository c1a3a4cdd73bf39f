package logger

import (
	"log"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"k3clevel/common/config"
)

var (
	Logger *zap.Logger
)

type LogLevel int8

const (
	DebugLevel LogLevel = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
)

func ParseLevel(level string) (LogLevel, error) {
	name, err := config.NormalizeLevel(level)
	if err != nil {
		return InfoLevel, err
	}
	switch name {
	case "debug":
		return DebugLevel, nil
	case "warn":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, nil
}

func newEncoder(color bool) zapcore.Encoder {
	levelEncoder := zapcore.CapitalLevelEncoder
	if color {
		levelEncoder = zapcore.CapitalColorLevelEncoder
	}
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		TimeKey:          "time",
		CallerKey:        "caller",
		EncodeLevel:      levelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func newConsoleCore(encoder zapcore.Encoder, level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
}

func newFileCore(encoder zapcore.Encoder, level zapcore.Level, logfile string, maxSize, maxBackups, maxAge int) zapcore.Core {
	logFile := &lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   false,
		LocalTime:  true,
	}

	return zapcore.NewCore(encoder, zapcore.AddSync(logFile), level)
}

// InitLogger installs the global logger. The rotating file core is skipped
// when logfile is empty; the file never gets colored level names.
func InitLogger(level LogLevel, logfile string, supportColor bool, maxSize, maxBackups, maxAge int) {
	cores := []zapcore.Core{newConsoleCore(newEncoder(supportColor), zapcore.Level(level))}
	if logfile != "" {
		cores = append(cores, newFileCore(newEncoder(false), zapcore.Level(level), logfile, maxSize, maxBackups, maxAge))
	}
	Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

func InitFromConfig(cfg config.LogConfig) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	InitLogger(level, cfg.File, cfg.Color, cfg.MaxSize, cfg.MaxBackups, cfg.MaxAge)
	return nil
}

// SetLogger replaces the global logger, e.g. with an observer core in tests.
func SetLogger(l *zap.Logger) {
	Logger = l
}

func Sync() {
	if Logger != nil {
		err := Logger.Sync()
		if err != nil {
			log.Printf("failed to sync logger: %v", err)
		}
	}
}

func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Infof(format, args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Debugf(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Errorf(format, args...)
	}
}
