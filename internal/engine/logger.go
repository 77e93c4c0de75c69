package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ycore "github.com/yggdrasil-network/yggdrasil-go/src/core"
)

// LevelTrace sits below debug for the engine's very chatty trace output.
const LevelTrace = slog.LevelDebug - 4

// slogLogger adapts slog to the logger the mesh core expects.
type slogLogger struct {
	l *slog.Logger
}

var _ ycore.Logger = slogLogger{}

func newSlogLogger(l *slog.Logger) slogLogger {
	return slogLogger{l: l.With("component", "mesh")}
}

func (s slogLogger) log(level slog.Level, msg string) {
	s.l.Log(context.Background(), level, strings.TrimRight(msg, "\n"))
}

func (s slogLogger) Printf(f string, a ...interface{}) { s.log(slog.LevelInfo, fmt.Sprintf(f, a...)) }
func (s slogLogger) Println(a ...interface{})          { s.log(slog.LevelInfo, fmt.Sprintln(a...)) }
func (s slogLogger) Infof(f string, a ...interface{})  { s.log(slog.LevelInfo, fmt.Sprintf(f, a...)) }
func (s slogLogger) Infoln(a ...interface{})           { s.log(slog.LevelInfo, fmt.Sprintln(a...)) }
func (s slogLogger) Warnf(f string, a ...interface{})  { s.log(slog.LevelWarn, fmt.Sprintf(f, a...)) }
func (s slogLogger) Warnln(a ...interface{})           { s.log(slog.LevelWarn, fmt.Sprintln(a...)) }
func (s slogLogger) Errorf(f string, a ...interface{}) { s.log(slog.LevelError, fmt.Sprintf(f, a...)) }
func (s slogLogger) Errorln(a ...interface{})          { s.log(slog.LevelError, fmt.Sprintln(a...)) }
func (s slogLogger) Debugf(f string, a ...interface{}) { s.log(slog.LevelDebug, fmt.Sprintf(f, a...)) }
func (s slogLogger) Debugln(a ...interface{})          { s.log(slog.LevelDebug, fmt.Sprintln(a...)) }
func (s slogLogger) Traceln(a ...interface{})          { s.log(LevelTrace, fmt.Sprintln(a...)) }
