// Package prof wraps runtime/pprof for the --cpu-profile and --mem-profile flags.
package prof

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

var (
	mu      sync.Mutex
	cpuFile *os.File
)

// StartCPU enables CPU profiling and writes samples to path.
func StartCPU(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if cpuFile != nil {
		return fmt.Errorf("cpu profile already running")
	}
	// #nosec G304 -- path comes from the command line
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	cpuFile = f
	return nil
}

// StopCPU stops an active CPU profile and closes its file. It is a no-op
// when no profile runs.
func StopCPU() error {
	mu.Lock()
	defer mu.Unlock()
	if cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := cpuFile.Close()
	cpuFile = nil
	return err
}

// WriteMem captures a heap profile to path.
func WriteMem(path string) (err error) {
	// #nosec G304 -- path comes from the command line
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
