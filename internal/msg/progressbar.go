package msg

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar counts finished build jobs. It is safe for concurrent use.
type ProgressBar struct {
	Total   int
	Current int
	Label   string
	Start   time.Time
	W       io.Writer

	mu         sync.Mutex
	lastPrint  time.Time
	throbIndex int
}

var throbbers = []rune{'|', '/', '-', '\\'}

func NewProgressBar(label string, total int, w io.Writer) *ProgressBar {
	return &ProgressBar{
		Total: total,
		Label: label,
		Start: time.Now(),
		W:     w,
	}
}

// Step records n finished jobs.
func (pb *ProgressBar) Step(n int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.Current += n
	if time.Since(pb.lastPrint) > 40*time.Millisecond {
		pb.print(false)
		pb.lastPrint = time.Now()
	}
}

func (pb *ProgressBar) print(finish bool) {
	width := 30
	percent := float64(pb.Current) / float64(max(pb.Total, 1))
	if finish {
		percent = 1
	}

	filled := min(int(percent*float64(width)), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("-", width-filled)

	throb := throbbers[pb.throbIndex%len(throbbers)]
	pb.throbIndex++
	if finish {
		throb = ' '
	}

	fmt.Fprintf(pb.W, "\r%s %d/%d [%s] %c",
		pb.Label,
		min(pb.Current, pb.Total),
		pb.Total,
		bar,
		throb,
	)
}

func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.print(true)
	fmt.Fprintf(pb.W, " %s\n", time.Since(pb.Start).Round(time.Millisecond))
}
