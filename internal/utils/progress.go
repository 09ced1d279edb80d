package utils

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Progress is a terminal progress bar. Updates may come from several
// goroutines at once.
type Progress struct {
	mu          sync.Mutex
	title       string
	container   *mpb.Progress
	bar         *mpb.Bar
	enabled     bool
	description string
}

var descLength = 20

// NewProgress creates a progress bar titled title. The bar is drawn on the
// first update, once the total is known, and only when enabled and stderr
// is a terminal.
func NewProgress(title string, enabled bool) *Progress {
	return &Progress{title: title, enabled: enabled && isTerminal()}
}

func (p *Progress) start(total int) {
	fmt.Fprintln(os.Stderr)

	p.container = mpb.New(
		mpb.WithOutput(os.Stderr),
		mpb.WithWidth(64),
		mpb.WithRefreshRate(100*time.Millisecond),
	)

	p.bar = p.container.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(p.title, decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			decor.Any(func(decor.Statistics) string {
				return p.current()
			}, decor.WC{W: descLength, C: decor.DindentRight}),
			decor.CountersNoUnit("%d/%d", decor.WC{C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)
}

func (p *Progress) current() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.description) > descLength {
		return p.description[:descLength-2] + ".."
	}
	return p.description
}

// Update sets the bar to done items with description as the current item.
// Its signature matches worker.ProgressFunc.
func (p *Progress) Update(done, total int, description string) {
	if !p.enabled {
		return
	}

	p.mu.Lock()
	if p.bar == nil {
		p.start(total)
	}
	p.description = description
	bar := p.bar
	p.mu.Unlock()

	bar.SetCurrent(int64(done))
}

// Finish completes the bar and waits for it to render
func (p *Progress) Finish() {
	p.mu.Lock()
	bar, container := p.bar, p.container
	p.mu.Unlock()

	if !p.enabled || container == nil {
		return
	}

	bar.SetTotal(-1, true)
	container.Wait()

	fmt.Fprintln(os.Stderr)
}

// isTerminal checks if stderr is a terminal (TTY)
func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
