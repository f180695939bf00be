package provider

import (
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger returns the logger handed to adapters. Terraform captures
// provider stderr, so JSON lines written there show up under TF_LOG. The
// level follows TF_LOG: TRACE and DEBUG enable debug output, anything else
// logs at info and above.
func newLogger(w io.Writer, tfLog string) *zap.Logger {
	level := zapcore.InfoLevel
	switch strings.ToUpper(strings.TrimSpace(tfLog)) {
	case "TRACE", "DEBUG":
		level = zapcore.DebugLevel
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "@timestamp"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoder), zapcore.AddSync(w), level)
	return zap.New(core).Named("filesync")
}
