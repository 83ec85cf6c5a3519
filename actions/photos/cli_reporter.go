package photos

import (
	"fmt"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/admariner/instagrapi/client"
)

// CLIReporter renders upload progress as a terminal bar. The bar spans the
// byte transfer; configure attempts update the status label next to it.
type CLIReporter struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	mu       sync.Mutex

	statusMsg string
}

func NewCLIReporter() *CLIReporter {
	return &CLIReporter{
		progress:  mpb.New(mpb.WithWidth(60)),
		statusMsg: "Starting...",
	}
}

func (r *CLIReporter) Report(p client.ProgressReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch p.Step {
	case client.ProgressStepPrepare:
		r.statusMsg = "📦 Preparing..."

	case client.ProgressStepUpload:
		if r.bar == nil && p.TotalBytes > 0 {
			r.bar = r.progress.AddBar(p.TotalBytes,
				mpb.PrependDecorators(
					decor.Any(func(st decor.Statistics) string {
						return fmt.Sprintf("%-18s", r.statusMsg)
					}, decor.WCSyncSpaceR),
					decor.Counters(decor.SizeB1024(0), "% .2f / % .2f", decor.WCSyncSpace),
				),
				mpb.AppendDecorators(
					decor.AverageSpeed(decor.SizeB1024(0), "% .2f", decor.WCSyncSpace),
					decor.Name(" | "),
					decor.OnComplete(
						decor.AverageETA(decor.ET_STYLE_GO), "✨ Done!",
					),
				),
			)
		}
		r.statusMsg = "⬆️  Uploading"
		if r.bar != nil {
			r.bar.SetCurrent(p.BytesSent)
		}

	case client.ProgressStepConfigure:
		r.statusMsg = fmt.Sprintf("⚙️  Config %d/%d", p.Attempt, p.Attempts)

	case client.ProgressStepDone:
		r.statusMsg = "Done"
		if r.bar != nil && !r.bar.Completed() {
			r.bar.SetTotal(-1, true)
		}
	}
}

func (r *CLIReporter) Wait() {
	r.progress.Wait()
}
