// Package logger provides leveled, component-tagged logging for chatsync.
//
// Components pass a short tag ("store", "transport", "health") so log lines
// from the sync core can be filtered per concern. Fields are rendered as
// key=value pairs after the message.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	level atomic.Int32
	mu    sync.Mutex
	out   io.Writer = os.Stderr
)

func init() {
	level.Store(int32(INFO))
}

// SetLevel sets the minimum level that will be written.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "?"
	}
}

func write(l Level, component, msg string, fields map[string]any) {
	if int32(l) < level.Load() {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(l.String())
	b.WriteString("] [")
	b.WriteString(component)
	b.WriteString("] ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	mu.Lock()
	defer mu.Unlock()
	_, _ = io.WriteString(out, b.String())
}

func DebugC(component, msg string)                    { write(DEBUG, component, msg, nil) }
func DebugCF(component, msg string, f map[string]any) { write(DEBUG, component, msg, f) }
func InfoC(component, msg string)                     { write(INFO, component, msg, nil) }
func InfoCF(component, msg string, f map[string]any)  { write(INFO, component, msg, f) }
func WarnC(component, msg string)                     { write(WARN, component, msg, nil) }
func WarnCF(component, msg string, f map[string]any)  { write(WARN, component, msg, f) }
func ErrorC(component, msg string)                    { write(ERROR, component, msg, nil) }
func ErrorCF(component, msg string, f map[string]any) { write(ERROR, component, msg, f) }
