package logger

import (
	"fmt"
	stdlog "log"
	"os"
	"path"
	"path/filepath"

	"github.com/op/go-logging"

	"github.com/simple-thread/pharos/util"
)

/*
InitLogger creates and returns a logger suitable for logging
human-readable messages. Also returns the path to the log file.
Under go test, returns a discard logger so test runs don't litter
log files.
*/
func InitLogger(logDir string, logLevel logging.Level) (*logging.Logger, string) {
	if util.TestsAreRunning() {
		return DiscardLogger(), ""
	}
	processName := path.Base(os.Args[0])
	filename := fmt.Sprintf("%s.log", processName)
	filename = filepath.Join(logDir, filename)
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file '%s': %v\n", filename, err)
		os.Exit(1)
	}
	log := logging.MustGetLogger(processName)
	format := logging.MustStringFormatter("[%{level}] %{message}")
	logging.SetFormatter(format)
	logging.SetLevel(logLevel, processName)
	logBackend := logging.NewLogBackend(writer, "", stdlog.LstdFlags|stdlog.LUTC)
	logging.SetBackend(logBackend)
	return log, filename
}

// DiscardLogger returns a logger that writes to /dev/null. Used in
// tests that don't care about log output.
func DiscardLogger() *logging.Logger {
	log := logging.MustGetLogger("discard")
	devNull, _ := os.OpenFile(os.DevNull, os.O_WRONLY, 0644)
	logging.SetBackend(logging.NewLogBackend(devNull, "", 0))
	return log
}
