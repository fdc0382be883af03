//go:build wasip1

package main

import "unsafe"

const (
	logInfo  uint32 = 1
	logError uint32 = 3
)

//go:wasmimport env log
func hostLog(level, ptr, length uint32)

//go:wasmimport env param_i64
func paramI64(index uint32) int64

//go:wasmimport env event
func currentEvent() uint64

var (
	prescaler Prescaler
	quiet     bool
)

func logf(level uint32, msg string) {
	if msg == "" {
		return
	}
	hostLog(level, uint32(uintptr(unsafe.Pointer(unsafe.StringData(msg)))), uint32(len(msg)))
}

//go:wasmexport prepare
func prepare() int32 {
	prescaler.Every = uint64(paramI64(paramEvery))
	prescaler.Offset = uint64(paramI64(paramOffset))
	quiet = paramI64(paramQuiet) != 0
	if err := prescaler.Validate(); err != nil {
		logf(logError, err.Error())
		return statusQuitError
	}
	return statusOK
}

//go:wasmexport begin_run
func beginRun() int32 {
	prescaler.Reset()
	return statusOK
}

//go:wasmexport analyze
func analyze() int32 {
	if prescaler.Keep(currentEvent()) {
		return statusOK
	}
	return statusSkip
}

//go:wasmexport end_run
func endRun() int32 {
	if !quiet {
		logf(logInfo, prescaler.Summary())
	}
	return statusOK
}
