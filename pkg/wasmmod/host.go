package wasmmod

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Guest log levels accepted by env.log.
const (
	LogDebug uint32 = iota
	LogInfo
	LogWarn
	LogError
)

// registerHostFunctions exports the "env" functions a guest may import:
//
//	log(level, ptr, len i32)                 write a message to the host log
//	param_i64(index i32) -> i64              int or bool parameter by position
//	param_f64(index i32) -> f64              numeric parameter by position
//	param_str(index, ptr, cap i32) -> i32    copy a string parameter, return its length
//	event() -> i64                           event number within the current run
func (m *Module) registerHostFunctions(builder wazero.HostModuleBuilder) {
	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, level, ptr, length uint32) {
			mem := mod.Memory()
			if mem == nil {
				return
			}
			msg, ok := mem.Read(ptr, length)
			if !ok {
				m.class.logger.Warn().Str("module", m.ModuleID()).Msg("Guest log message out of memory bounds")
				return
			}
			m.class.logger.WithLevel(guestLevel(level)).Str("module", m.ModuleID()).Msg(string(msg))
		}).
		Export("log")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, index uint32) int64 {
			v := m.valueAt(index)
			if v == nil {
				return 0
			}
			switch v.spec.Type {
			case "int":
				return int64(v.i)
			case "bool":
				if v.b {
					return 1
				}
			case "float":
				return int64(v.f)
			}
			return 0
		}).
		Export("param_i64")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, index uint32) float64 {
			v := m.valueAt(index)
			if v == nil {
				return math.NaN()
			}
			switch v.spec.Type {
			case "float":
				return v.f
			case "int":
				return float64(v.i)
			}
			return math.NaN()
		}).
		Export("param_f64")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, index, ptr, capacity uint32) uint32 {
			v := m.valueAt(index)
			if v == nil || v.spec.Type != "string" {
				return 0
			}
			data := []byte(v.s)
			n := min(uint32(len(data)), capacity)
			if mem := mod.Memory(); mem != nil && n > 0 {
				if !mem.Write(ptr, data[:n]) {
					return 0
				}
			}
			return uint32(len(data))
		}).
		Export("param_str")

	builder.NewFunctionBuilder().
		WithFunc(func(context.Context) uint64 {
			return m.event
		}).
		Export("event")
}

func (m *Module) valueAt(index uint32) *value {
	if int(index) >= len(m.values) {
		return nil
	}
	return m.values[index]
}

func guestLevel(level uint32) zerolog.Level {
	switch level {
	case LogDebug:
		return zerolog.DebugLevel
	case LogInfo:
		return zerolog.InfoLevel
	case LogWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
