package terminal

import (
	"context"
	"log/slog"

	"github.com/badri/wtmcp/internal/logger"
	"github.com/badri/wtmcp/internal/wterr"
)

// Index enumerates the host's live sessions.
type Index struct {
	host Host
	log  *slog.Logger
}

// NewIndex wraps host. A nil host means no supported terminal was detected;
// every call then fails with wterr.TerminalUnavailable.
func NewIndex(host Host) *Index {
	return &Index{host: host, log: logger.WithComponent("terminal")}
}

// Host returns the wrapped backend, which may be nil.
func (i *Index) Host() Host {
	return i.host
}

// Probe checks that the transport is reachable right now. It is meant to be
// called at the start of every tool invocation; the result is never cached.
func (i *Index) Probe(ctx context.Context) error {
	if i.host == nil {
		return wterr.E(wterr.TerminalUnavailable, wterr.Op("terminal.Probe"),
			"no supported terminal detected (run inside tmux or WezTerm)")
	}
	if err := i.host.Ping(ctx); err != nil {
		if wterr.Is(err, wterr.OperationTimedOut) {
			return err
		}
		return wterr.E(wterr.TerminalUnavailable, wterr.Op("terminal.Probe"),
			i.host.Name()+" is not reachable", err)
	}
	return nil
}

// ListSessions lists every tab. A failed listing is retried once before
// surfacing wterr.TerminalUnavailable. Zero tabs is an empty result.
func (i *Index) ListSessions(ctx context.Context) ([]Session, error) {
	if i.host == nil {
		return nil, i.Probe(ctx)
	}

	sessions, err := i.host.ListSessions(ctx)
	if err == nil {
		return sessions, nil
	}
	i.log.Debug("session listing failed, retrying", "host", i.host.Name(), "error", err)

	sessions, err = i.host.ListSessions(ctx)
	if err == nil {
		return sessions, nil
	}
	if wterr.Is(err, wterr.OperationTimedOut) {
		return nil, err
	}
	return nil, wterr.E(wterr.TerminalUnavailable, wterr.Op("terminal.ListSessions"),
		"listing "+i.host.Name()+" sessions failed", err)
}
