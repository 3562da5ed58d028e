package util

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	Logger zerolog.Logger
)

func LogInit(inlevel string) {
	var level zerolog.Level
	switch strings.ToLower(inlevel) {
	case "debug":
		level = zerolog.DebugLevel
	case "trace":
		level = zerolog.TraceLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	Logger = zerolog.New(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
	).Level(level).With().Timestamp().Caller().Logger()

	Logger.Debug().Msgf("logging initialized at level %v", level)
}

// NarrationWriter turns room status messages into info log lines, one
// event per line.  Partial lines are held until their newline arrives.
type NarrationWriter struct {
	mu      sync.Mutex
	pending bytes.Buffer
	source  string
}

func NewNarrationWriter(source string) *NarrationWriter {
	return &NarrationWriter{source: source}
}

var _ io.Writer = (*NarrationWriter)(nil)

func (n *NarrationWriter) Write(p []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending.Write(p)
	for {
		line, err := n.pending.ReadString('\n')
		if err != nil {
			// no newline yet - put it back
			rest := []byte(line)
			n.pending.Reset()
			n.pending.Write(rest)
			break
		}
		if msg := strings.TrimSpace(line); msg != "" {
			Logger.Info().Str("source", n.source).Msg(msg)
		}
	}
	return len(p), nil
}
