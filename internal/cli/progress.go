package cli

import (
	"io"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"

	"toolbelt/internal/tui"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
)

// byteBar renders one download's byte progress on an interactive terminal.
// The bar is created on the first callback, so cache hits and resolution
// failures never flash an empty bar.
type byteBar struct {
	out io.Writer
	bar *pb.ProgressBar
}

// newByteBar returns nil when progress output is disabled or the writer is
// not a terminal; the methods tolerate a nil receiver.
func newByteBar(out io.Writer) *byteBar {
	if noProgress || outputJSON || !tui.IsTerminal(out) {
		return nil
	}
	return &byteBar{out: out}
}

func (b *byteBar) update(written, total int64) {
	if b == nil {
		return
	}
	if b.bar == nil {
		b.bar = pb.New64(total)
		b.bar.Set(pb.Bytes, true)
		b.bar.SetWriter(b.out)
		b.bar.Start()
	}
	if total > 0 && b.bar.Total() != total {
		b.bar.SetTotal(total)
	}
	b.bar.SetCurrent(written)
}

func (b *byteBar) finish() {
	if b == nil || b.bar == nil {
		return
	}
	b.bar.Finish()
}
