package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
	"github.com/iconidentify/coursegrab/internal/downloader"
	"github.com/iconidentify/coursegrab/internal/repository"
	"github.com/iconidentify/coursegrab/internal/scraper"
	"github.com/iconidentify/coursegrab/internal/worker"
)

const (
	courseFilesDir    = "course_files"
	courseFilesPrefix = "Course Files: "
	lessonTextPrefix  = "Lesson Text: "
	lessonTextExt     = ".html"
	poolStopTimeout   = 30 * time.Second
)

// RunRequest is the input of a course run.
type RunRequest struct {
	CourseURL    string `json:"course_url"`
	SavePath     string `json:"save_path,omitempty"`
	Prefix       bool   `json:"prefix"`
	SkipIfExists bool   `json:"skip_if_exists"`
}

// CourseService orchestrates a course run: login, outline, media
// resolution and downloads.
type CourseService struct {
	cfg           *config.Config
	open          SessionOpener
	outline       OutlineScraper
	media         MediaResolver
	newDownloader DownloaderFactory
	runs          repository.RunRepository
	logger        *slog.Logger

	// busy is held for the whole run; one browser session at a time.
	busy sync.Mutex
}

// NewCourseService creates a new course service.
func NewCourseService(
	cfg *config.Config,
	open SessionOpener,
	outline OutlineScraper,
	media MediaResolver,
	newDownloader DownloaderFactory,
	runs repository.RunRepository,
	logger *slog.Logger,
) *CourseService {
	return &CourseService{
		cfg:           cfg,
		open:          open,
		outline:       outline,
		media:         media,
		newDownloader: newDownloader,
		runs:          runs,
		logger:        logger,
	}
}

// Run downloads every lecture of the course at req.CourseURL. Fatal errors
// abort the run and are returned without a summary. Lecture failures are
// recorded in the summary. On cancellation the partial summary is returned
// together with an error wrapping domain.ErrCanceled.
func (s *CourseService) Run(ctx context.Context, req RunRequest) (*domain.CourseSummary, error) {
	req.CourseURL = strings.TrimSpace(req.CourseURL)
	if req.CourseURL == "" {
		return nil, fmt.Errorf("%w: course URL is required", domain.ErrInvalidInput)
	}

	if !s.busy.TryLock() {
		return nil, domain.ErrSessionBusy
	}
	defer s.busy.Unlock()

	run := domain.NewRun(domain.RunID(uuid.New().String()), req.CourseURL, req.SavePath, req.Prefix, req.SkipIfExists)
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	logger := s.logger.With("run_id", run.ID)
	logger.Info("course run started", "url", req.CourseURL, "prefix", req.Prefix, "skip_if_exists", req.SkipIfExists)

	session, err := s.open(ctx, req.CourseURL)
	if err != nil {
		return nil, s.abort(ctx, logger, run, nil, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser session", "error", err)
		}
	}()
	logger.Info("login detected")

	s.advance(logger, run, domain.RunStateScrapingOutline)
	outline, err := s.outline.ScrapeOutline(ctx, session, req.CourseURL)
	if err != nil {
		return nil, s.abort(ctx, logger, run, nil, err)
	}

	saveRoot := req.SavePath
	if saveRoot == "" {
		saveRoot = filepath.Join(s.cfg.Storage.BasePath, scraper.SanitizeFilename(outline.Title))
	}

	s.advance(logger, run, domain.RunStateDownloading)
	logger.Info("downloading course",
		"title", outline.Title,
		"chapters", len(outline.Chapters),
		"lectures", outline.LectureCount(),
		"save_root", saveRoot,
	)

	cookies, err := session.Cookies(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.abort(ctx, logger, run, nil, err)
		}
		logger.Warn("could not read session cookies, downloading without them", "error", err)
	}
	dl, err := s.newDownloader(cookies, req.CourseURL)
	if err != nil {
		return nil, s.abort(ctx, logger, run, nil, fmt.Errorf("create downloader: %w", err))
	}

	job := &courseJob{
		svc:      s,
		session:  session,
		dl:       dl,
		outline:  outline,
		saveRoot: saveRoot,
		req:      req,
		logger:   logger,
	}
	results, extras, err := job.process(ctx)

	summary := domain.NewCourseSummary(outline.Title, saveRoot, results)
	summary.Extras = extras

	if err != nil {
		return summary, s.abort(ctx, logger, run, summary, err)
	}

	if err := run.MarkDone(summary); err != nil {
		logger.Error("invalid run transition", "error", err)
	}
	s.save(logger, run)

	logger.Info("course run finished",
		"total", summary.Total,
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"failed", len(summary.Failed),
	)
	return summary, nil
}

// GetRun returns a run by ID.
func (s *CourseService) GetRun(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	return s.runs.Get(ctx, id)
}

// ListRuns returns runs newest first and the total number of matches.
func (s *CourseService) ListRuns(ctx context.Context, state *domain.RunState, limit, offset int) ([]*domain.Run, int, error) {
	return s.runs.List(ctx, state, limit, offset)
}

// Stats returns run counts per state.
func (s *CourseService) Stats(ctx context.Context) (*repository.RunStats, error) {
	return s.runs.Stats(ctx)
}

// Busy reports whether a run currently holds the browser session.
func (s *CourseService) Busy() bool {
	if s.busy.TryLock() {
		s.busy.Unlock()
		return false
	}
	return true
}

func (s *CourseService) advance(logger *slog.Logger, run *domain.Run, to domain.RunState) {
	if err := run.Advance(to); err != nil {
		logger.Error("invalid run transition", "error", err)
		return
	}
	s.save(logger, run)
}

// abort ends the run. Errors caused by caller cancellation are reported
// as domain.ErrCanceled.
func (s *CourseService) abort(ctx context.Context, logger *slog.Logger, run *domain.Run, summary *domain.CourseSummary, err error) error {
	if ctx.Err() != nil && !errors.Is(err, domain.ErrCanceled) {
		err = fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
	}

	run.Summary = summary
	if markErr := run.MarkAborted(err); markErr != nil {
		logger.Error("invalid run transition", "error", markErr)
	}
	s.save(logger, run)

	logger.Error("course run aborted", "state", run.State, "error", err)
	return err
}

// save persists run state. The caller's context may already be canceled,
// so bookkeeping is not bound to it.
func (s *CourseService) save(logger *slog.Logger, run *domain.Run) {
	if err := s.runs.Update(context.Background(), run); err != nil {
		logger.Warn("failed to update run", "error", err)
	}
}

// courseJob is the Downloading phase of one run.
type courseJob struct {
	svc      *CourseService
	session  Session
	dl       downloader.Downloader
	outline  *domain.CourseOutline
	saveRoot string
	req      RunRequest
	logger   *slog.Logger

	// claimed maps a lowercased destination to the lecture that owns it.
	// Only touched from the orchestrator goroutine.
	claimed map[string]domain.LecturePosition

	mu      sync.Mutex
	results []domain.DownloadResult
	extras  []domain.DownloadResult
}

// process walks the outline in course order. Resolution runs on this
// goroutine because the session allows one navigation at a time;
// transfers run on the pool.
func (j *courseJob) process(ctx context.Context) ([]domain.DownloadResult, []domain.DownloadResult, error) {
	pool := worker.NewPool(ctx, worker.Config{Workers: j.svc.cfg.Worker.Count}, j.logger)
	pool.Start()

	j.claimed = make(map[string]domain.LecturePosition)
	chapterWidth := prefixWidth(len(j.outline.Chapters))
	lectureWidth := prefixWidth(j.outline.MaxLecturesPerChapter())
	policy := domain.PolicyFor(j.req.SkipIfExists)
	courseFilesPending := j.svc.cfg.Scrape.CourseFiles

	var err error
lectures:
	for ci, chapter := range j.outline.Chapters {
		for li, ref := range chapter.Lectures {
			if ctx.Err() != nil {
				err = ctx.Err()
				break lectures
			}

			pos := domain.LecturePosition{Chapter: ci + 1, Lecture: li + 1}
			prefix := ""
			if j.req.Prefix {
				prefix = fmt.Sprintf("%0*d_%0*d_", chapterWidth, pos.Chapter, lectureWidth, pos.Lecture)
			}
			logger := j.logger.With("position", pos.String(), "lecture", ref.Title)

			// Checked before resolving so a finished lecture costs no navigation.
			expected := domain.DownloadTarget{
				DestinationPath: j.destination(prefix+scraper.FilenameFor(ref.Title, ""), pos),
				Policy:          policy,
			}
			if j.dl.ShouldSkip(expected) {
				logger.Info("lecture already downloaded", "path", expected.DestinationPath)
				j.record(lectureResult(domain.SkippedExists(expected), pos, ref.Title))
				continue
			}

			media, page, resolveErr := j.svc.media.Resolve(ctx, j.session, ref)
			if resolveErr != nil && ctx.Err() != nil {
				err = ctx.Err()
				break lectures
			}

			if courseFilesPending && page != nil {
				courseFilesPending = false
				if submitErr := j.submitCourseFiles(ctx, pool, page, policy); submitErr != nil {
					err = submitErr
					break lectures
				}
			}

			if resolveErr != nil {
				logger.Warn("lecture media not resolved", "error", resolveErr)
				res := lectureResult(domain.Failed(expected, resolveErr), pos, ref.Title)
				res.Err = domain.NewLectureError(pos, ref.Title, "resolve", resolveErr)
				j.record(res)
				if page != nil && errors.Is(resolveErr, domain.ErrMediaNotFound) {
					j.saveLessonText(logger, page, prefix, ref.Title, pos, policy)
				}
				continue
			}

			target := domain.DownloadTarget{
				DestinationPath: j.destination(prefix+media.SuggestedFilename, pos),
				Policy:          policy,
			}
			if target != expected && j.dl.ShouldSkip(target) {
				logger.Info("lecture already downloaded", "path", target.DestinationPath)
				j.record(lectureResult(domain.SkippedExists(target), pos, ref.Title))
				continue
			}

			mediaURL := media.MediaURL
			title := ref.Title
			submitErr := pool.Submit(ctx, func(taskCtx context.Context) {
				res := lectureResult(safeDownload(taskCtx, j.dl, mediaURL, target), pos, title)
				if res.Err != nil {
					logger.Warn("lecture download failed", "reason", res.Reason)
					res.Err = domain.NewLectureError(pos, title, "download", res.Err)
				}
				j.record(res)
			})
			if submitErr != nil {
				err = submitErr
				break lectures
			}
		}
	}

	// Every lecture was skipped, so no page was read yet.
	if err == nil && courseFilesPending {
		page, pageErr := j.firstLecturePage(ctx)
		switch {
		case pageErr != nil:
			err = pageErr
		case page != nil:
			err = j.submitCourseFiles(ctx, pool, page, policy)
		}
	}

	if err != nil {
		if stopErr := pool.Stop(poolStopTimeout); stopErr != nil {
			j.logger.Warn("transfers did not stop in time", "error", stopErr)
		}
	} else {
		pool.Wait()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.results, j.extras, err
}

// destination returns the path of name under the save root. A name already
// taken by an earlier lecture gets the lecture position appended, so two
// lectures never share a file.
func (j *courseJob) destination(name string, pos domain.LecturePosition) string {
	dest := filepath.Join(j.saveRoot, name)
	if owner, ok := j.claimed[strings.ToLower(dest)]; ok && owner != pos {
		ext := filepath.Ext(name)
		dest = filepath.Join(j.saveRoot, strings.TrimSuffix(name, ext)+" ("+pos.String()+")"+ext)
	}
	j.claimed[strings.ToLower(dest)] = pos
	return dest
}

// firstLecturePage loads the first linked lecture page. Only context
// errors are returned; anything else is logged and yields nil.
func (j *courseJob) firstLecturePage(ctx context.Context) (*scraper.LecturePage, error) {
	for _, chapter := range j.outline.Chapters {
		for _, ref := range chapter.Lectures {
			if ref.DetailURL == "" {
				continue
			}
			if err := j.session.Navigate(ctx, ref.DetailURL); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				j.logger.Warn("could not open lecture for course files", "url", ref.DetailURL, "error", err)
				return nil, nil
			}
			if err := j.session.WaitFor(ctx, j.svc.cfg.Scrape.CourseFilesSelector, j.svc.cfg.Scrape.MediaTimeout); err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			html, err := j.session.HTML(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				j.logger.Warn("could not read lecture for course files", "url", ref.DetailURL, "error", err)
				return nil, nil
			}
			pageURL := ref.DetailURL
			if loc, err := j.session.URL(ctx); err == nil && loc != "" {
				pageURL = loc
			}
			return &scraper.LecturePage{URL: pageURL, HTML: html}, nil
		}
	}
	return nil, nil
}

// saveLessonText keeps the page of a lecture without media when it holds
// a text lesson. The lecture itself stays recorded as failed.
func (j *courseJob) saveLessonText(logger *slog.Logger, page *scraper.LecturePage, prefix, title string, pos domain.LecturePosition, policy domain.OverwritePolicy) {
	if !scraper.HasLessonContent(page.HTML, j.svc.cfg.Scrape.LessonContentSelector) {
		return
	}

	target := domain.DownloadTarget{
		DestinationPath: j.destination(prefix+scraper.SanitizeFilename(title)+lessonTextExt, pos),
		Policy:          policy,
	}

	var res domain.DownloadResult
	if j.dl.ShouldSkip(target) {
		res = domain.SkippedExists(target)
	} else if n, err := downloader.SaveFile(target.DestinationPath, strings.NewReader(page.HTML)); err != nil {
		logger.Warn("could not save lesson text", "path", target.DestinationPath, "error", err)
		res = domain.Failed(target, fmt.Errorf("%w: save lesson page: %v", domain.ErrTransfer, err))
	} else {
		logger.Info("lesson text saved", "path", target.DestinationPath)
		res = domain.Downloaded(target, n)
	}

	res.Position = pos
	res.LectureTitle = lessonTextPrefix + title
	j.recordExtra(res)
}

// submitCourseFiles queues downloads of the attachments listed on page.
// Listing failures are logged and never abort the run.
func (j *courseJob) submitCourseFiles(ctx context.Context, pool *worker.Pool, page *scraper.LecturePage, policy domain.OverwritePolicy) error {
	files, err := scraper.ParseCourseFiles(page.HTML, page.URL, j.svc.cfg.Scrape.CourseFilesSelector)
	if err != nil {
		j.logger.Warn("could not read course files", "error", err)
		return nil
	}
	j.logger.Info("course files found", "count", len(files))

	for _, f := range files {
		target := domain.DownloadTarget{
			DestinationPath: filepath.Join(j.saveRoot, courseFilesDir, f.Name),
			Policy:          policy,
		}
		title := courseFilesPrefix + f.Name
		fileURL := f.URL
		err := pool.Submit(ctx, func(taskCtx context.Context) {
			res := safeDownload(taskCtx, j.dl, fileURL, target)
			res.LectureTitle = title
			if res.Err != nil {
				j.logger.Warn("course file download failed", "file", title, "reason", res.Reason)
			}
			j.recordExtra(res)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (j *courseJob) record(res domain.DownloadResult) {
	j.mu.Lock()
	j.results = append(j.results, res)
	j.mu.Unlock()
}

func (j *courseJob) recordExtra(res domain.DownloadResult) {
	j.mu.Lock()
	j.extras = append(j.extras, res)
	j.mu.Unlock()
}

// safeDownload reports a panicking downloader as a failed transfer.
func safeDownload(ctx context.Context, dl downloader.Downloader, mediaURL string, target domain.DownloadTarget) (res domain.DownloadResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = domain.Failed(target, fmt.Errorf("%w: downloader panic: %v", domain.ErrTransfer, rec))
		}
	}()
	return dl.Download(ctx, mediaURL, target)
}

func lectureResult(res domain.DownloadResult, pos domain.LecturePosition, title string) domain.DownloadResult {
	res.Position = pos
	res.LectureTitle = title
	return res
}

// prefixWidth is the zero-padded width of an index up to n, at least 2.
func prefixWidth(n int) int {
	if w := len(strconv.Itoa(n)); w > 2 {
		return w
	}
	return 2
}
