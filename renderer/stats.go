package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
)

type StepStat struct {
	// The initialization step.
	Name string

	// Time spent in the step.
	Duration time.Duration
}

type BuildStats struct {
	// Individual initialization steps in execution order.
	Steps []StepStat

	// Total initialization time.
	Total time.Duration
}

type FrameStats struct {
	Frames  int
	Elapsed float32
	// Wall clock time for all frames.
	Duration time.Duration
}

// FPS is a rough average over the run.
func (s FrameStats) FPS() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Duration.Seconds()
}

func (s *BuildStats) timed(name string, step func() error) error {
	start := time.Now()
	err := step()
	d := time.Since(start)
	s.Steps = append(s.Steps, StepStat{Name: name, Duration: d})
	s.Total += d
	return err
}

// Table renders the step timings.
func (s BuildStats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Step", "Time", "% of total"})
	for _, step := range s.Steps {
		share := 0.0
		if s.Total > 0 {
			share = 100 * float64(step.Duration) / float64(s.Total)
		}
		table.Append([]string{
			step.Name,
			fmt.Sprintf("%s", step.Duration),
			fmt.Sprintf("%02.1f %%", share),
		})
	}
	table.SetFooter([]string{"TOTAL", fmt.Sprintf("%s", s.Total), ""})
	table.Render()
	return buf.String()
}
