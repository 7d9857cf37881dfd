// Package logging sets up the structured log file. The terminal belongs to
// the UI, so records never go to stdout or stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// FileName is the log file's name inside the config directory.
const FileName = "sqlharbor.log"

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger writing to w. Every record carries the run's
// session id.
func New(w io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("session", uuid.NewString())
}

// Open appends to dir/sqlharbor.log. The returned closer closes the file.
func Open(dir string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(f, level), f, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var secretParams = regexp.MustCompile(`(?i)\b(password|passwd|pwd|token|motherduck_token|md_token|secret)=([^&\s;]+)`)

// Redact masks passwords in URL user info and secret-looking key=value
// parameters so connection strings can be logged.
func Redact(connStr string) string {
	s := connStr
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.User != nil {
		s = u.Redacted()
	}
	s = redactUserInfo(s)
	return secretParams.ReplaceAllString(s, "${1}=xxxxx")
}

// redactUserInfo masks "user:pass@" in driver DSNs that are not URLs,
// such as MySQL's user:pass@tcp(host)/db.
func redactUserInfo(s string) string {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return s
	}
	head := s[:at]
	start := 0
	if i := strings.LastIndex(head, "//"); i >= 0 {
		start = i + 2
	}
	colon := strings.Index(head[start:], ":")
	if colon < 0 {
		return s
	}
	colon += start
	if head[colon+1:] == "xxxxx" {
		return s
	}
	return head[:colon+1] + "xxxxx" + s[at:]
}

// RedactAll applies Redact to each connection string.
func RedactAll(connStr []string) []string {
	out := make([]string, len(connStr))
	for i, s := range connStr {
		out[i] = Redact(s)
	}
	return out
}
