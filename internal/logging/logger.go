package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "UPNPCTL_LOG_LEVEL"

// maxDumpBytes bounds hex and ascii dumps of datagrams and bodies.
const maxDumpBytes = 256

// Initialize creates a new logger with the specified level.
// If level is empty, it checks UPNPCTL_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitializeFromEnv initializes the logger from the UPNPCTL_LOG_LEVEL
// environment variable.
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogDatagram logs an SSDP datagram sent or received on a UDP socket.
// The payload is only dumped at debug level.
func LogDatagram(direction string, addr string, data []byte) {
	fields := []zap.Field{
		zap.String("direction", direction),
		zap.String("addr", addr),
		zap.Int("length", len(data)),
	}
	if GetLogger().Core().Enabled(zapcore.DebugLevel) {
		fields = append(fields, zap.String("payload", asciiDump(data)))
	}
	Debug("SSDP datagram", fields...)
}

// LogDroppedDatagram logs a datagram that could not be decoded.
func LogDroppedDatagram(addr string, data []byte, err error) {
	Debug("Dropped SSDP datagram",
		zap.String("addr", addr),
		zap.Int("length", len(data)),
		zap.Error(err),
		zap.String("hex", hexDump(data)),
	)
}

// LogHTTPExchange logs a completed outbound HTTP request
func LogHTTPExchange(method string, url string, statusCode int, duration time.Duration) {
	Debug("HTTP exchange",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status_code", statusCode),
		zap.Duration("duration", duration),
	)
}

// LogHTTPRequest logs an inbound HTTP request on the callback server
func LogHTTPRequest(remoteAddr string, method string, path string, headers map[string]string) {
	Debug("HTTP request received",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Any("headers", headers),
	)
}

// LogSubscription logs a subscription lifecycle event
// (subscribed, renewed, unsubscribed, expired).
func LogSubscription(event string, sid string, leaseSeconds uint32) {
	lease := "infinite"
	if leaseSeconds > 0 {
		lease = (time.Duration(leaseSeconds) * time.Second).String()
	}
	Info("Subscription "+event,
		zap.String("sid", sid),
		zap.String("lease", lease),
	)
}

// LogConnection logs a websocket client connecting or leaving the event stream
func LogConnection(remoteAddr string, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogRawBytes logs raw bytes (useful for debugging protocol issues)
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxDumpBytes {
		return hex.EncodeToString(data[:maxDumpBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	truncated := len(data) > maxDumpBytes
	if truncated {
		data = data[:maxDumpBytes]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		switch {
		case b == '\r':
			result[i] = ' '
		case b == '\n':
			result[i] = '|'
		case b >= 32 && b <= 126:
			result[i] = b
		default:
			result[i] = '.'
		}
	}
	if truncated {
		return string(result) + "..."
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
