package util

import (
	"os"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// WritePidFile writes this process' pid to the specified file.
func WritePidFile(pathToFile string) error {
	pidStr := strconv.Itoa(os.Getpid())
	return os.WriteFile(pathToFile, []byte(pidStr), 0664)
}

// ReadPidFile returns the pid from the specified file, or zero if the
// file is missing or unparsable.
func ReadPidFile(pathToFile string) int {
	data, err := os.ReadFile(pathToFile)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// IsRunningInOtherProcess returns true if the pid file at pathToFile
// contains a pid belonging to another live process. A stale pid file
// left by a crashed server returns false, so startup can proceed.
func IsRunningInOtherProcess(pathToFile string) bool {
	pid := ReadPidFile(pathToFile)
	if pid == 0 || pid == os.Getpid() {
		return false
	}
	return ProcessIsRunning(pid)
}

// ProcessIsRunning returns true if the process with pid is running.
// This uses go-ps internally because golang's os.FindProcess always
// returns a process on *nix, even when no process with that pid is
// running.
func ProcessIsRunning(pid int) bool {
	proc, _ := ps.FindProcess(pid)
	return proc != nil
}

// DeletePidFile removes the pid file. Call on clean shutdown.
func DeletePidFile(pathToFile string) error {
	if FileExists(pathToFile) {
		return os.Remove(pathToFile)
	}
	return nil
}
