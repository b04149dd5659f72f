// Package utils holds small cross-cutting helpers shared by the sender
// and emulator binaries. Today that's just logging.
package utils

import (
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide structured logger. NewLogger should be
// called once during startup before any package-level logging happens;
// it defaults to a development logger so importing packages never see a
// nil Logger in tests.
var Logger *zap.Logger

func init() {
	Logger, _ = zap.NewDevelopment()
}

var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// NewLogger builds the process logger: a human-readable console sink
// plus, when logPath is non-empty, a JSON file sink rotated through
// lumberjack, mirroring the teacher's zapcore.NewTee setup.
func NewLogger(level string, logPath string) *zap.Logger {
	lvl, ok := levelMap[level]
	if !ok {
		lvl = zapcore.InfoLevel
	}
	enabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= lvl })

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), enabler),
	}

	if logPath != "" {
		hook := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    64,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(hook), enabler))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	Logger = logger
	return logger
}

// TimeEncoder matches the teacher's millisecond-precision timestamp format.
func TimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}
