package common

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LoggerOrDiscard はloggerがnilの場合に何も出力しないロガーを返す
func LoggerOrDiscard(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger != nil {
		return logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}
