package cli

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

const spinnerTick = 120 * time.Millisecond

// spinner animates an indeterminate bar on stderr while a request to the
// service is in flight.
type spinner struct {
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// startSpinner returns the function that stops the animation. It is safe to
// call more than once.
func startSpinner(enabled bool, description string) func() {
	if !enabled {
		return func() {}
	}

	s := &spinner{
		bar: progressbar.NewOptions(
			-1,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetElapsedTime(true),
			progressbar.OptionThrottle(80*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s.halt
}

func (s *spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			_ = s.bar.Finish()
			return
		case <-ticker.C:
			_ = s.bar.Add(1)
		}
	}
}

func (s *spinner) halt() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
}
