package client

import "io"

// Progress steps reported during an upload.
const (
	ProgressStepPrepare   = "PREPARE"
	ProgressStepUpload    = "UPLOAD"
	ProgressStepConfigure = "CONFIGURE"
	ProgressStepDone      = "DONE"
)

// ProgressReport is a single progress event emitted during an upload.
type ProgressReport struct {
	Step       string
	BytesSent  int64
	TotalBytes int64
	Attempt    int
	Attempts   int
	Message    string
}

// ProgressReporter receives upload progress events. Implementations must be
// fast; they are called inline with the transfer.
type ProgressReporter interface {
	Report(p ProgressReport)
}

// progressReader counts bytes as they are read from the wrapped reader and
// forwards the running total.
type progressReader struct {
	reader io.Reader
	total  int64
	read   int64
	onProg func(read, total int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		if pr.onProg != nil {
			pr.onProg(pr.read, pr.total)
		}
	}
	return n, err
}
