// README: Logger construction shared by all services.
package logging

import (
	"github.com/sirupsen/logrus"
)

// New builds the process logger. Invalid levels fall back to info.
func New(level string, jsonFormat bool) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
