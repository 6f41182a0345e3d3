package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevelEnvName selects the log level for verbose test runs.
const LogLevelEnvName = "TEST_LOG_LEVEL"

// Program and ledger logs are discarded unless the test binary runs with -v.
func init() {
	verbose := false
	for _, arg := range os.Args {
		if arg == "-test.v" || arg == "-test.v=true" {
			verbose = true
		}
	}

	if !verbose {
		logrus.StandardLogger().Out = io.Discard
		return
	}

	level, err := logrus.ParseLevel(os.Getenv(LogLevelEnvName))
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}
