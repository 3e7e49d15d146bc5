package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// pageProgress renders loader progress as a progress bar on stderr.
// The bar is created on the first callback, once the page count is known.
type pageProgress struct {
	description string
	writer      io.Writer
	visible     bool
	bar         *progressbar.ProgressBar
}

func newPageProgress(description string) *pageProgress {
	return &pageProgress{
		description: description,
		writer:      os.Stderr,
		visible:     term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Update implements the loader's OnProgress hook.
func (p *pageProgress) Update(done, total int) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(p.description),
			progressbar.OptionSetWriter(p.writer),
			progressbar.OptionSetVisibility(p.visible),
			progressbar.OptionSetItsString("pages"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(p.writer, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	_ = p.bar.Set(done)
}

// Finish completes the bar if one was started.
func (p *pageProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
