package main

import (
	"fmt"
	"io"

	"github.com/japanesestudent/media-uploader/internal/client/uploader"
)

// progressStep is the percentage granularity of progress lines
const progressStep = 25

// progressPrinter writes one line per status change and per progress step.
// It is called with the ledger locked, so it needs no locking of its own.
type progressPrinter struct {
	out  io.Writer
	last map[string]uploader.LedgerEntry
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, last: make(map[string]uploader.LedgerEntry)}
}

func (p *progressPrinter) print(entry uploader.LedgerEntry) {
	prev, seen := p.last[entry.Key]
	p.last[entry.Key] = entry

	switch {
	case !seen || prev.Status != entry.Status:
		if entry.Status == uploader.StatusFailed && entry.Reason != "" {
			fmt.Fprintf(p.out, "%s: %s (%s)\n", entry.Name, entry.Status, entry.Reason)
			return
		}
		fmt.Fprintf(p.out, "%s: %s\n", entry.Name, entry.Status)
	case entry.Progress/progressStep > prev.Progress/progressStep:
		fmt.Fprintf(p.out, "%s: %d%%\n", entry.Name, entry.Progress)
	}
}
