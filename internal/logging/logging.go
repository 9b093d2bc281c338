// Package logging sets up the structured access and diagnostic logger the
// event loop writes through. Earlier access logging here used the standard
// library's log.Printf in a tab-separated field order (remote host, method,
// target, status, duration); Access keeps that same field order but emits it
// as structured zap fields instead, so it stays machine-parseable under
// load.
package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger. debug switches the encoder to a
// development-friendly console format with caller info; otherwise it emits
// JSON, which is what a process under a supervisor should be writing.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Access writes one access-log entry in the remote host / method / target /
// status / duration shape the prototype used.
func Access(log *zap.Logger, remoteHost, method, target string, status int, dur time.Duration) {
	log.Info("request",
		zap.String("remote_host", remoteHost),
		zap.String("method", method),
		zap.String("target", target),
		zap.Int("status", status),
		zap.Duration("duration", dur),
	)
}
