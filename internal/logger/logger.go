package logger

import "go.uber.org/zap"

// Log is the process-wide logger. Call Init before using it.
var Log *zap.Logger

func Init(debug bool) {
	if debug {
		Log = zap.Must(zap.NewDevelopment())
		return
	}
	Log = zap.Must(zap.NewProduction())
}

func Sugar() *zap.SugaredLogger {
	return Log.Sugar()
}
