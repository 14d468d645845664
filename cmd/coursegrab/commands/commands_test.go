package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/iconidentify/coursegrab/internal/domain"
	"github.com/iconidentify/coursegrab/internal/service"
)

func testSummary() *domain.CourseSummary {
	root := "/data/Intro to Rigging"
	return domain.NewCourseSummary("Intro to Rigging", root, []domain.DownloadResult{
		{
			Position:     domain.LecturePosition{Chapter: 1, Lecture: 1},
			LectureTitle: "Bones",
			Target:       domain.DownloadTarget{DestinationPath: filepath.Join(root, "Bones.mp4")},
			Outcome:      domain.OutcomeDownloaded,
			Bytes:        2_000_000,
		},
		{
			Position:     domain.LecturePosition{Chapter: 1, Lecture: 2},
			LectureTitle: "Joints",
			Target:       domain.DownloadTarget{DestinationPath: filepath.Join(root, "Joints.mp4")},
			Outcome:      domain.OutcomeSkippedExists,
		},
		domain.Failed(domain.DownloadTarget{}, errors.New("boom")),
	})
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := printSummary(&buf, testSummary()); err != nil {
		t.Fatalf("printSummary: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Intro to Rigging",
		"/data/Intro to Rigging",
		"Lectures:    3",
		"Downloaded:  1 (2.0 MB)",
		"Skipped:     1",
		"Failed:      1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Course files:") {
		t.Errorf("course files line printed without extras:\n%s", out)
	}
}

func TestPrintSummary_Extras(t *testing.T) {
	s := testSummary()
	s.Extras = []domain.DownloadResult{
		{LectureTitle: "Course Files: rig.zip", Outcome: domain.OutcomeDownloaded},
		{LectureTitle: "Course Files: notes.pdf", Outcome: domain.OutcomeFailed, Reason: "TransferError: 404"},
	}

	var buf bytes.Buffer
	if err := printSummary(&buf, s); err != nil {
		t.Fatalf("printSummary: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Course files:  2") {
		t.Errorf("missing course files count:\n%s", out)
	}
	if !strings.Contains(out, "Course Files: notes.pdf: TransferError: 404") {
		t.Errorf("missing failed course file:\n%s", out)
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	want := testSummary()

	if err := writeReport(path, []*domain.CourseSummary{want}); err != nil {
		t.Fatalf("writeReport: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var report []domain.CourseSummary
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("report has %d summaries, want 1", len(report))
	}
	got := report[0]
	if diff := cmp.Diff(want.Failed, got.Failed); diff != "" {
		t.Errorf("failed lectures mismatch (-want +got):\n%s", diff)
	}
	if got.Title != want.Title || got.Total != want.Total || got.Downloaded != want.Downloaded {
		t.Errorf("report = %+v, want %+v", got, want)
	}
}

func TestFailedLecturesMessage(t *testing.T) {
	s := &domain.CourseSummary{Failed: []domain.LectureFailure{{Title: "a"}}}
	if got := failedLecturesMessage(s); got != "1 lecture failed" {
		t.Errorf("got %q", got)
	}
	s.Failed = append(s.Failed, domain.LectureFailure{Title: "b"})
	if got := failedLecturesMessage(s); got != "2 lectures failed" {
		t.Errorf("got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", false)
	logger.Info("hello", "course", "rigging")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["course"] != "rigging" {
		t.Errorf("course = %v, want rigging", entry["course"])
	}
}

func TestDownloadCommand_RequiresURL(t *testing.T) {
	if err := downloadCmd.Args(downloadCmd, nil); err == nil {
		t.Error("expected an error without a course URL")
	}
	if err := downloadCmd.Args(downloadCmd, []string{"https://school.example.com/courses/x"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := downloadCmd.Args(downloadCmd, []string{"https://school.example.com/courses/x", "https://school.example.com/courses/y"}); err != nil {
		t.Errorf("unexpected error for two URLs: %v", err)
	}
}

// fakeRunner returns canned outcomes per course URL and records call order.
type fakeRunner struct {
	summaries map[string]*domain.CourseSummary
	errs      map[string]error
	calls     []service.RunRequest
}

func (r *fakeRunner) Run(ctx context.Context, req service.RunRequest) (*domain.CourseSummary, error) {
	r.calls = append(r.calls, req)
	return r.summaries[req.CourseURL], r.errs[req.CourseURL]
}

func TestDownloadCourses_RunsEachCourse(t *testing.T) {
	const (
		rigging  = "https://school.example.com/courses/rigging"
		sculpt   = "https://school.example.com/courses/sculpt"
		lighting = "https://school.example.com/courses/lighting"
	)
	sculptSummary := domain.NewCourseSummary("Sculpting", "/data/Sculpting", []domain.DownloadResult{
		{LectureTitle: "Clay", Outcome: domain.OutcomeDownloaded},
	})
	runner := &fakeRunner{
		summaries: map[string]*domain.CourseSummary{
			rigging: testSummary(),
			sculpt:  sculptSummary,
		},
		errs: map[string]error{
			lighting: fmt.Errorf("%w after 5m0s", domain.ErrLoginTimeout),
		},
	}
	reportFile := filepath.Join(t.TempDir(), "report.json")
	opts := downloadOptions{
		request:    service.RunRequest{Prefix: true, SkipIfExists: true},
		reportPath: reportFile,
	}

	var buf bytes.Buffer
	err := downloadCourses(context.Background(), runner, []string{rigging, lighting, sculpt}, opts, &buf, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var urls []string
	for _, req := range runner.calls {
		urls = append(urls, req.CourseURL)
		if !req.Prefix || !req.SkipIfExists {
			t.Errorf("request %+v lost the shared options", req)
		}
	}
	if diff := cmp.Diff([]string{rigging, lighting, sculpt}, urls); diff != "" {
		t.Errorf("run order mismatch (-want +got):\n%s", diff)
	}

	if !errors.Is(err, domain.ErrLoginTimeout) {
		t.Errorf("err = %v, want ErrLoginTimeout from the aborted course", err)
	}
	if err == nil || !strings.Contains(err.Error(), "Intro to Rigging: 1 lecture failed") {
		t.Errorf("err = %v, want the rigging failure", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Intro to Rigging") || !strings.Contains(out, "Sculpting") {
		t.Errorf("output missing a course summary:\n%s", out)
	}

	data, err := os.ReadFile(reportFile)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report []domain.CourseSummary
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	var titles []string
	for _, s := range report {
		titles = append(titles, s.Title)
	}
	if diff := cmp.Diff([]string{"Intro to Rigging", "Sculpting"}, titles); diff != "" {
		t.Errorf("report titles mismatch (-want +got):\n%s", diff)
	}
}

func TestDownloadCourses_SavePathNeedsSingleURL(t *testing.T) {
	runner := &fakeRunner{}
	opts := downloadOptions{request: service.RunRequest{SavePath: "/data/course"}}

	err := downloadCourses(context.Background(), runner, []string{"https://a.example.com/c", "https://b.example.com/c"}, opts, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected an error for --save-path with two URLs")
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner called %d times, want 0", len(runner.calls))
	}
}

func TestDownloadCourses_StopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := "https://school.example.com/courses/first"
	runner := &fakeRunner{
		summaries: map[string]*domain.CourseSummary{},
		errs:      map[string]error{first: domain.ErrCanceled},
	}
	cancel()

	err := downloadCourses(ctx, runner, []string{first, "https://school.example.com/courses/second"}, downloadOptions{}, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, domain.ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("runner called %d times, want 1", len(runner.calls))
	}
}
