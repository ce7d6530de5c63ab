package logger

import (
	"go.uber.org/zap"
)

// Log is replaced by Init. Until then it discards everything, which keeps
// packages usable from tests.
var Log = zap.NewNop().Sugar()

func Init(development bool) {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

func Sync() {
	_ = Log.Sync()
}
