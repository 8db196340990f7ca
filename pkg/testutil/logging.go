package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Tests importing this package only log when run verbosely.
func init() {
	for _, arg := range os.Args {
		if arg == "-test.v=true" {
			logrus.SetLevel(logrus.TraceLevel)
			return
		}
	}
	logrus.StandardLogger().Out = io.Discard
}

func DisableLogging() (reset func()) {
	original := logrus.StandardLogger().Out
	logrus.StandardLogger().Out = io.Discard
	return func() {
		logrus.StandardLogger().Out = original
	}
}
