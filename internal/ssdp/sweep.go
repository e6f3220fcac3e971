package ssdp

import (
	"context"
	"time"

	"github.com/muurk/upnpctl/internal/protocol"
)

// minSweepWindow keeps a large target list from starving each search.
const minSweepWindow = time.Second

// DefaultSweepTargets are searched by Sweep when no targets are given.
var DefaultSweepTargets = []string{
	protocol.SearchTargetRootDevice,
	protocol.URNInternetGatewayDevice1,
	protocol.URNInternetGatewayDevice2,
	protocol.URNMediaRenderer1,
	protocol.URNMediaServer1,
}

// SweepProgress is reported after each target of a sweep completes.
type SweepProgress struct {
	Index  int // zero-based position of the target
	Total  int
	Target string
	Found  int // responses for this target before de-duplication
	Err    error
}

// Sweep searches each target in turn with its own socket, splitting budget
// evenly between them, and returns the de-duplicated union. Each target gets
// at least one second, so a budget shorter than one second per target is
// exceeded: 2s over five targets runs for about 5s. A failing target is
// reported through progress and skipped; the first such error is returned
// only when every target failed.
func (s *Searcher) Sweep(ctx context.Context, targets []string, budget time.Duration, progress func(SweepProgress)) ([]protocol.Announcement, error) {
	if len(targets) == 0 {
		targets = DefaultSweepTargets
	}
	if budget <= 0 {
		budget = s.Timeout
	}

	window := sweepWindow(budget, len(targets))

	var (
		all      []protocol.Announcement
		firstErr error
		failures int
	)
	for i, st := range targets {
		if ctx.Err() != nil {
			break
		}
		found, err := s.search(ctx, st, window)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
		}
		all = append(all, found...)
		if progress != nil {
			progress(SweepProgress{Index: i, Total: len(targets), Target: st, Found: len(found), Err: err})
		}
	}

	if failures == len(targets) {
		return nil, firstErr
	}
	return Dedupe(all), nil
}

// sweepWindow is the per-target search window: an even share of budget, but
// never less than minSweepWindow.
func sweepWindow(budget time.Duration, targets int) time.Duration {
	return max(budget/time.Duration(targets), minSweepWindow)
}

// Dedupe removes repeated announcements, keeping the first seen. Entries are
// keyed by USN, or by Location when the USN is empty.
func Dedupe(in []protocol.Announcement) []protocol.Announcement {
	seen := make(map[string]struct{}, len(in))
	out := make([]protocol.Announcement, 0, len(in))
	for _, a := range in {
		key := "usn:" + a.USN
		if a.USN == "" {
			key = "location:" + a.Location
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
