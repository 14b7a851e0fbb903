// Package logger はJSON構造化ログのセットアップを提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// LevelCritical は実行を継続できない障害を表すログレベル。
const LevelCritical = slog.Level(12)

// DefaultLevel はLOG_LEVELが未設定または不正な場合のログレベル。
const DefaultLevel = slog.LevelWarn

// levels はLOG_LEVELで指定できる名前とslogのレベルの対応。
// NOTSET はすべてのログを出力する。
var levels = map[string]slog.Level{
	"CRITICAL": LevelCritical,
	"ERROR":    slog.LevelError,
	"WARNING":  slog.LevelWarn,
	"INFO":     slog.LevelInfo,
	"DEBUG":    slog.LevelDebug,
	"NOTSET":   slog.LevelDebug,
}

// ParseLevel はLOG_LEVELの値をslogのレベルに変換する。
// 名前は大文字で完全一致させる。未知の値の場合はDefaultLevelとfalseを返す。
func ParseLevel(name string) (slog.Level, bool) {
	level, ok := levels[name]
	if !ok {
		return DefaultLevel, false
	}
	return level, true
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelName,
	})
	return slog.New(handler)
}

// New はLOG_LEVELの値からロガーを生成する。
// 値が不正な場合はデフォルトのレベルで生成し、その旨を警告として出力する。
func New(w io.Writer, levelName string) *slog.Logger {
	level, ok := ParseLevel(levelName)
	l := Setup(w, level)
	if !ok {
		l.Warn("LOG_LEVEL が不正なためデフォルトのレベルを使用します",
			slog.String("log_level", levelName),
			slog.String("default", "WARNING"),
		)
	}
	return l
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定し、そのロガーを返す。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer, levelName string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	l := New(w, levelName)
	slog.SetDefault(l)
	return l
}

// replaceLevelName は独自レベルに名前を付ける。
func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelCritical {
		return slog.String(slog.LevelKey, "CRITICAL")
	}
	return a
}
