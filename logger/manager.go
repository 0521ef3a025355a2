package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns one logger per module and the file writers behind them
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger
	zapLoggers map[string]*zap.Logger
	writers    map[string][]*lumberjack.Logger
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager creates a standalone manager; zero-valued fields get defaults
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
		zapLoggers: make(map[string]*zap.Logger),
		writers:    make(map[string][]*lumberjack.Logger),
	}
}

// InitManager initializes the global manager once
func InitManager(cfg ManagerConfig) {
	managerOnce.Do(func() {
		globalManager = NewManager(cfg)
	})
}

// GetLogger returns the module logger, creating it on first use
// The returned logger already carries the module field.
func (m *Manager) GetLogger(moduleName string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[moduleName]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.loggers[moduleName]; ok {
		return l
	}

	zapLogger := m.createLogger(m.buildModuleConfig(moduleName)).
		With(zap.String("module", moduleName))

	ctxLogger := &CtxZapLogger{
		// skip the CtxZapLogger wrapper frame
		base:   zapLogger.WithOptions(zap.AddCallerSkip(1)),
		module: moduleName,
		config: &m.baseConfig,
	}
	m.loggers[moduleName] = ctxLogger
	m.zapLoggers[moduleName] = zapLogger
	return ctxLogger
}

func (m *Manager) buildModuleConfig(moduleName string) Config {
	return Config{
		Level:                 m.baseConfig.Level,
		Encoding:              m.baseConfig.Encoding,
		ConsoleEncoding:       m.baseConfig.ConsoleEncoding,
		moduleName:            moduleName,
		logDir:                m.baseConfig.BaseLogDir,
		EnableFile:            m.baseConfig.EnableFile,
		EnableConsole:         m.baseConfig.EnableConsole,
		EnableLevelInFilename: m.baseConfig.EnableLevelInFilename,
		EnableDateInFilename:  m.baseConfig.EnableDateInFilename,
		DateFormat:            m.baseConfig.DateFormat,
		MaxSize:               m.baseConfig.MaxSize,
		MaxBackups:            m.baseConfig.MaxBackups,
		MaxAge:                m.baseConfig.MaxAge,
		Compress:              m.baseConfig.Compress,
		EnableCaller:          m.baseConfig.EnableCaller,
	}
}

// createLogger tees console output with an info file and an error file
// Caller must hold m.mu.
func (m *Manager) createLogger(cfg Config) *zap.Logger {
	encoder := createEncoder(cfg.Encoding)
	level := ParseLevel(cfg.Level)
	var cores []zapcore.Core

	if cfg.EnableConsole {
		consoleEncoder := encoder
		if cfg.ConsoleEncoding != "" && cfg.ConsoleEncoding != cfg.Encoding {
			consoleEncoder = createEncoder(cfg.ConsoleEncoding)
		}
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level))
	}

	if cfg.EnableFile {
		infoWriter, infoLumber := createFileWriter(cfg.filePath("info"), cfg)
		errorWriter, errorLumber := createFileWriter(cfg.filePath("error"), cfg)
		m.writers[cfg.moduleName] = []*lumberjack.Logger{infoLumber, errorLumber}

		// info file: configured level up to warn
		cores = append(cores, zapcore.NewCore(encoder, infoWriter,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.ErrorLevel
			})))
		cores = append(cores, zapcore.NewCore(encoder, errorWriter,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			})))
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

// CloseAll flushes buffers and closes file handles
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	for _, l := range m.zapLoggers {
		_ = l.Sync()
	}
	for _, writers := range m.writers {
		for _, w := range writers {
			_ = w.Close()
		}
	}
	m.loggers = make(map[string]*CtxZapLogger)
	m.zapLoggers = make(map[string]*zap.Logger)
	m.writers = make(map[string][]*lumberjack.Logger)
}

// ReloadConfig validates newCfg and rebuilds all module loggers lazily
//
// Loggers handed out before the reload keep writing with the old cores.
func (m *Manager) ReloadConfig(newCfg ManagerConfig) error {
	newCfg.ApplyDefaults()
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("new logger config is invalid: %w", err)
	}

	m.mu.Lock()
	oldLevel := m.baseConfig.Level
	m.closeLocked()
	m.baseConfig = newCfg
	m.mu.Unlock()

	if oldLevel != newCfg.Level {
		m.GetLogger(newCfg.LoggerName).Debug("Log level updated",
			zap.String("old_level", oldLevel),
			zap.String("new_level", newCfg.Level))
	}
	return nil
}

func createEncoder(encoding string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// createFileWriter rotating file writer; the lumberjack handle is kept for Close
func createFileWriter(filename string, cfg Config) (zapcore.WriteSyncer, *lumberjack.Logger) {
	_ = os.MkdirAll(filepath.Dir(filename), 0o755)

	lumber := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	return zapcore.AddSync(lumber), lumber
}

func global() *Manager {
	if globalManager == nil {
		InitManager(DefaultManagerConfig())
	}
	return globalManager
}

// GetLogger module logger from the global manager
func GetLogger(moduleName string) *CtxZapLogger {
	return global().GetLogger(moduleName)
}

// CloseAll flushes and closes the global manager
func CloseAll() {
	if globalManager == nil {
		return
	}
	globalManager.CloseAll()
}

// ReloadConfig reloads the global manager
func ReloadConfig(newCfg ManagerConfig) error {
	if globalManager == nil {
		return fmt.Errorf("logger manager is not initialized")
	}
	return globalManager.ReloadConfig(newCfg)
}

// Info logs through the module logger
//
//	logger.Info("quota", "Quota engine started", zap.String("store", "memory"))
func Info(module string, msg string, fields ...zap.Field) {
	GetLogger(module).Info(msg, fields...)
}

func Debug(module string, msg string, fields ...zap.Field) {
	GetLogger(module).Debug(msg, fields...)
}

func Warn(module string, msg string, fields ...zap.Field) {
	GetLogger(module).Warn(msg, fields...)
}

func Error(module string, msg string, fields ...zap.Field) {
	GetLogger(module).Error(msg, fields...)
}

func InfoCtx(ctx context.Context, module string, msg string, fields ...zap.Field) {
	GetLogger(module).InfoCtx(ctx, msg, fields...)
}

func DebugCtx(ctx context.Context, module string, msg string, fields ...zap.Field) {
	GetLogger(module).DebugCtx(ctx, msg, fields...)
}

func WarnCtx(ctx context.Context, module string, msg string, fields ...zap.Field) {
	GetLogger(module).WarnCtx(ctx, msg, fields...)
}

func ErrorCtx(ctx context.Context, module string, msg string, fields ...zap.Field) {
	GetLogger(module).ErrorCtx(ctx, msg, fields...)
}
