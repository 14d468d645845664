package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/coursegrab/internal/domain"
)

// printSummary writes a human readable run summary.
func printSummary(w io.Writer, s *domain.CourseSummary) error {
	var bytes int64
	for _, r := range s.Results {
		bytes += r.Bytes
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Course:\t%s\n", s.Title)
	fmt.Fprintf(tw, "Saved to:\t%s\n", s.SaveRoot)
	fmt.Fprintf(tw, "Lectures:\t%d\n", s.Total)
	fmt.Fprintf(tw, "Downloaded:\t%d (%s)\n", s.Downloaded, humanize.Bytes(uint64(bytes)))
	fmt.Fprintf(tw, "Skipped:\t%d\n", s.Skipped)
	fmt.Fprintf(tw, "Failed:\t%d\n", len(s.Failed))
	if len(s.Extras) > 0 {
		fmt.Fprintf(tw, "Course files:\t%d\n", len(s.Extras))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range s.Failed {
		if _, err := fmt.Fprintf(w, "  - %s: %s\n", f.Title, f.Reason); err != nil {
			return err
		}
	}
	for _, e := range s.Extras {
		if e.Outcome != domain.OutcomeFailed {
			continue
		}
		if _, err := fmt.Fprintf(w, "  - %s: %s\n", e.LectureTitle, e.Reason); err != nil {
			return err
		}
	}
	return nil
}
