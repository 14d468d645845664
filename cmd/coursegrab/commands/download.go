package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
	"github.com/iconidentify/coursegrab/internal/service"
)

var (
	savePath     string
	prefix       bool
	skipExisting bool
	reportPath   string
	printJSON    bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <course-url>...",
	Short: "Opens a browser at each course, waits for you to log in and downloads every lecture.",
	Long: `Opens a browser at each course, waits for you to log in and downloads every lecture.

Courses are downloaded one after another. A course that aborts does not stop
the ones after it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&savePath, "save-path", "", "Directory for the course (default <storage.base_path>/<course title>); single course only")
	downloadCmd.Flags().BoolVar(&prefix, "prefix", false, "Prefix filenames with chapter and lecture numbers")
	downloadCmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "Skip lectures whose file already exists")
	downloadCmd.Flags().StringVar(&reportPath, "report", "", "Write the run summaries as a JSON array to this file")
	downloadCmd.Flags().BoolVar(&printJSON, "json", false, "Print each summary as JSON instead of text")
	rootCmd.AddCommand(downloadCmd)
}

// courseRunner runs a single course.
type courseRunner interface {
	Run(ctx context.Context, req service.RunRequest) (*domain.CourseSummary, error)
}

type downloadOptions struct {
	request    service.RunRequest
	reportPath string
	json       bool
}

func runDownload(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr, logLevel, logJSON)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := downloadOptions{
		request: service.RunRequest{
			SavePath:     savePath,
			Prefix:       prefix,
			SkipIfExists: skipExisting,
		},
		reportPath: reportPath,
		json:       printJSON,
	}
	return downloadCourses(cmd.Context(), newCourseService(cfg, logger), args, opts, cmd.OutOrStdout(), logger)
}

// downloadCourses runs the courses in order and prints each summary as it
// finishes. Errors of all courses are joined.
func downloadCourses(ctx context.Context, runner courseRunner, urls []string, opts downloadOptions, out io.Writer, logger *slog.Logger) error {
	if opts.request.SavePath != "" && len(urls) > 1 {
		return errors.New("--save-path cannot be used with more than one course URL")
	}

	var (
		summaries []*domain.CourseSummary
		errs      []error
	)
	for _, courseURL := range urls {
		req := opts.request
		req.CourseURL = courseURL

		summary, err := runner.Run(ctx, req)
		if err != nil {
			logger.Error("course run aborted", "course_url", courseURL, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", courseURL, err))
		}
		if summary != nil {
			if len(summaries) > 0 && !opts.json {
				fmt.Fprintln(out)
			}
			summaries = append(summaries, summary)

			var printErr error
			if opts.json {
				printErr = encodeSummary(out, summary)
			} else {
				printErr = printSummary(out, summary)
			}
			if printErr != nil {
				return printErr
			}
			if len(summary.Failed) > 0 {
				errs = append(errs, fmt.Errorf("%s: %s", summary.Title, failedLecturesMessage(summary)))
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	if opts.reportPath != "" && len(summaries) > 0 {
		if err := writeReport(opts.reportPath, summaries); err != nil {
			logger.Error("failed to write report", "path", opts.reportPath, "error", err)
		}
	}

	return errors.Join(errs...)
}

func failedLecturesMessage(s *domain.CourseSummary) string {
	if len(s.Failed) == 1 {
		return "1 lecture failed"
	}
	return fmt.Sprintf("%d lectures failed", len(s.Failed))
}

func writeReport(path string, summaries []*domain.CourseSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeSummary(f, summaries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeSummary(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
