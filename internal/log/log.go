package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = map[Level]string{Debug: "debug", Info: "info", Warn: "warn", Error: "error"}
var nameToLevel = map[string]Level{"debug": Debug, "info": Info, "warn": Warn, "error": Error}

// ParseLevel maps a level name to a Level; unknown names yield Info.
func ParseLevel(s string) Level {
	if l, ok := nameToLevel[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return Info
}

func (l Level) String() string { return levelNames[l] }

// Logger writes one JSON object per line.
type Logger struct {
	out    io.Writer
	level  Level
	fields map[string]string
	mu     *sync.Mutex
}

// New returns a stderr logger whose level comes from DOCRAG_LOG_LEVEL.
func New() *Logger {
	return NewWithWriter(os.Stderr, ParseLevel(os.Getenv("DOCRAG_LOG_LEVEL")))
}

func NewWithWriter(w io.Writer, lvl Level) *Logger {
	return &Logger{out: w, level: lvl, fields: make(map[string]string), mu: &sync.Mutex{}}
}

// Discard drops everything; handy for tests and library defaults.
func Discard() *Logger { return NewWithWriter(io.Discard, Error+1) }

// With returns a child logger that adds kv to every record. Children share
// the parent's writer lock.
func (l *Logger) With(kv map[string]string) *Logger {
	child := &Logger{out: l.out, level: l.level, fields: make(map[string]string, len(l.fields)+len(kv)), mu: l.mu}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range kv {
		child.fields[k] = v
	}
	return child
}

func (l *Logger) Enabled(level Level) bool { return level >= l.level }

func (l *Logger) write(level Level, msg string, kv map[string]any) {
	if !l.Enabled(level) {
		return
	}
	rec := make(map[string]any, 3+len(l.fields)+len(kv))
	rec["ts"] = time.Now().Format(time.RFC3339)
	rec["level"] = levelNames[level]
	rec["msg"] = msg
	for k, v := range l.fields {
		rec[k] = v
	}
	for k, v := range kv {
		rec[k] = v
	}
	maskSecrets(rec)
	b, err := json.Marshal(rec)
	if err != nil {
		b, _ = json.Marshal(map[string]any{"ts": rec["ts"], "level": rec["level"], "msg": msg, "log_error": err.Error()})
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(b, '\n'))
}

func (l *Logger) Debug(msg string, kv ...any) { l.write(Debug, msg, toMap(kv...)) }
func (l *Logger) Info(msg string, kv ...any)  { l.write(Info, msg, toMap(kv...)) }
func (l *Logger) Warn(msg string, kv ...any)  { l.write(Warn, msg, toMap(kv...)) }
func (l *Logger) Error(msg string, kv ...any) { l.write(Error, msg, toMap(kv...)) }

func toMap(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, ok := kv[i+1].(error); ok {
			m[k] = err.Error()
			continue
		}
		m[k] = kv[i+1]
	}
	return m
}

var secretKeys = []string{"key", "token", "secret", "password", "authorization", "bearer"}

// secretPrefixes are value prefixes of provider API keys (OpenAI, Voyage).
var secretPrefixes = []string{"sk-", "pa-"}

// maskSecrets redacts likely secret values in-place.
func maskSecrets(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		if isSecretKey(k) {
			m[k] = redact(s)
			continue
		}
		lower := strings.ToLower(s)
		if strings.HasPrefix(lower, "bearer ") {
			m[k] = "Bearer " + redact(strings.TrimSpace(s[len("bearer "):]))
			continue
		}
		for _, p := range secretPrefixes {
			if strings.HasPrefix(s, p) && !strings.ContainsAny(s, " \n") && len(s) > 20 {
				m[k] = redact(s)
				break
			}
		}
	}
}

func isSecretKey(k string) bool {
	lk := strings.ToLower(k)
	// token counters are not secrets
	if strings.HasPrefix(lk, "tokens") || strings.HasSuffix(lk, "_tokens") {
		return false
	}
	for _, p := range secretKeys {
		if strings.Contains(lk, p) {
			return true
		}
	}
	return false
}

func redact(s string) string {
	n := len(s)
	if n <= 8 {
		return "***"
	}
	return fmt.Sprintf("%s***%s", s[:4], s[n-4:])
}
