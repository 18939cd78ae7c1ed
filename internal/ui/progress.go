package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps progressbar/v3 with gman styling
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBarBytes creates a byte-counting progress bar writing to w
func NewProgressBarBytes(w io.Writer, max int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Set64 sets the current progress to n
func (p *ProgressBar) Set64(n int64) error {
	return p.bar.Set64(n)
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() error {
	return p.bar.Finish()
}

// IsFinished returns true if the progress bar is finished
func (p *ProgressBar) IsFinished() bool {
	return p.bar.IsFinished()
}

// DownloadProgress renders the downloader's cumulative progress reports.
// A new bar starts once the previous one finished, so one value serves
// every download of a command.
type DownloadProgress struct {
	mu          sync.Mutex
	w           io.Writer
	description string
	bar         *ProgressBar
}

// NewDownloadProgress creates a progress renderer writing to w
func NewDownloadProgress(w io.Writer, description string) *DownloadProgress {
	return &DownloadProgress{w: w, description: description}
}

// Update has the signature of download.ProgressFunc
func (d *DownloadProgress) Update(done, total int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bar == nil || d.bar.IsFinished() {
		d.bar = NewProgressBarBytes(d.w, total, d.description)
	}
	_ = d.bar.Set64(done)
	if done >= total {
		_ = d.bar.Finish()
	}
}

// Finished reports whether the current bar has completed
func (d *DownloadProgress) Finished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bar != nil && d.bar.IsFinished()
}
