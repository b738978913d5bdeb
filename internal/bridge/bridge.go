// Package bridge bundles the host capabilities handed to assets.
//
// A Bridge is passed explicitly at construction. Every capability is
// optional; a nil Bridge or an unset field falls back to a default:
//   - Log: discarded
//   - Storage: none (callers get ErrNoStorage)
//   - Messages: a bus private to the Bridge
package bridge

import (
	"errors"
	"sync"

	"bridgekit/internal/eventbus"
	"bridgekit/internal/storage"
	logx "bridgekit/pkg/logx"
)

var ErrNoStorage = errors.New("bridge: no storage configured")

// LogSink is the host logging capability.
type LogSink interface {
	Log(severity Severity, msg string)
}

// LogFunc adapts a plain function to LogSink.
type LogFunc func(severity Severity, msg string)

func (f LogFunc) Log(severity Severity, msg string) { f(severity, msg) }

type Bridge struct {
	Logger LogSink
	Store  storage.Store
	Bus    *eventbus.Bus

	busOnce sync.Once
	ownBus  *eventbus.Bus
}

// Log forwards to the configured sink, if any.
func (b *Bridge) Log(severity Severity, msg string) {
	if b == nil || b.Logger == nil {
		return
	}
	b.Logger.Log(severity, msg)
}

// Storage returns the configured store or ErrNoStorage.
func (b *Bridge) Storage() (storage.Store, error) {
	if b == nil || b.Store == nil {
		return nil, ErrNoStorage
	}
	return b.Store, nil
}

// Messages returns the configured bus, creating a private one on first use.
func (b *Bridge) Messages() *eventbus.Bus {
	if b == nil {
		return eventbus.New()
	}
	if b.Bus != nil {
		return b.Bus
	}
	b.busOnce.Do(func() { b.ownBus = eventbus.New() })
	return b.ownBus
}

// ToLogx returns a sink writing bridge log calls to a structured logger.
func ToLogx(log logx.Logger) LogSink {
	return LogFunc(func(severity Severity, msg string) {
		log.Log(severity.Level(), msg, logx.String("severity", severity.String()))
	})
}

// Forwarder adapts a LogSink so the logx service can forward records to it.
type Forwarder struct {
	Sink LogSink
}

func (f Forwarder) Forward(level logx.Level, msg string) {
	if f.Sink == nil {
		return
	}
	f.Sink.Log(SeverityFromLevel(level), msg)
}
