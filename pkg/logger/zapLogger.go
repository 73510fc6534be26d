package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	instance *zap.SugaredLogger
	once     sync.Once
)

// ZapLogger адаптер для Zap, реализующий Logger.
// Все сервисы делят один корневой логгер, префикс уходит в named-логгер.
type ZapLogger struct {
	mu     sync.Mutex
	prefix string
	log    *zap.SugaredLogger
}

func NewLogger(prefix string) *ZapLogger {
	once.Do(func() {
		config := zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		built, err := config.Build()
		if err != nil {
			// конфиг статический, сюда попадать не должны
			panic(err)
		}
		instance = built.Sugar()
	})

	return &ZapLogger{
		prefix: prefix,
		log:    instance.Named(prefix),
	}
}

func (l *ZapLogger) Log(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

func (l *ZapLogger) Warn(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

func (l *ZapLogger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

func (l *ZapLogger) WithPrefix(extraPrefix string) *ZapLogger {
	return &ZapLogger{
		prefix: l.prefix + " " + extraPrefix,
		log:    l.log.Named(extraPrefix),
	}
}

func (l *ZapLogger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
	l.log = instance.Named(prefix)
}

// Sync сбрасывает буферы перед выходом.
func Sync() {
	if instance != nil {
		_ = instance.Sync()
	}
}
