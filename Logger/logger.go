package Logger

import (
	"KaufmannHealth/Models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

func Setup() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	var err error
	log, err = config.Build()
	if err != nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("service_name", "kaufmann-health"))
}

func get() *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return log
}

// LogError is the central error sink: every caught failure goes through here
// with a source tag and context fields, and is mirrored into the events table
// so the admin error digest can surface it.
func LogError(source string, err error, context map[string]interface{}) {
	fields := []zap.Field{zap.String("source", source), zap.Error(err)}
	for key, value := range context {
		fields = append(fields, zap.Any(key, value))
	}
	get().Error("error", fields...)

	properties := map[string]interface{}{"source": source}
	if err != nil {
		properties["error"] = err.Error()
	}
	for key, value := range context {
		properties[key] = value
	}
	Models.Track("system_error", "error", properties)
}

func Info(source string, message string, context map[string]interface{}) {
	fields := []zap.Field{zap.String("source", source)}
	for key, value := range context {
		fields = append(fields, zap.Any(key, value))
	}
	get().Info(message, fields...)
}
