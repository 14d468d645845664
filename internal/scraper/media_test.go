package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
)

const lessonURL = "https://school.test/lessons/bones"

func newWistiaServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/embed/medias/abc123.json":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(`{"media":{"name":"Bones","assets":[
				{"type":"original","url":"https://embed.wistia.test/a/orig.bin","size":500,"contentType":"video/mp4"},
				{"type":"hls","url":"https://embed.wistia.test/a/master.m3u8","size":9000,"contentType":"application/x-mpegURL"},
				{"type":"mp4_720","url":"https://embed.wistia.test/a/720.mp4","size":300,"contentType":"video/mp4"},
				{"type":"still","url":"","size":10}
			]}}`))
		case "/embed/medias/empty.json":
			w.Write([]byte(`{"media":{"assets":[]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestWistia(baseURL string) *WistiaClient {
	return NewWistiaClient(config.WistiaConfig{BaseURL: baseURL, Timeout: 5 * time.Second})
}

func TestMediaResolver_Resolve_VideoSource(t *testing.T) {
	page := newFakePage(map[string]string{
		lessonURL: `<html><body><video controls><source src="/media/bones.MP4?sig=x"></video></body></html>`,
	})
	r := NewMediaResolver(testScrapeConfig(), nil, testLogger())

	media, lecture, err := r.Resolve(context.Background(), page, domain.LectureRef{Title: "Bones: Part 1", DetailURL: lessonURL})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := &domain.ResolvedMedia{
		MediaURL:          "https://school.test/media/bones.MP4?sig=x",
		SuggestedFilename: "Bones- Part 1.mp4",
	}
	if diff := cmp.Diff(want, media); diff != "" {
		t.Errorf("media mismatch (-want +got):\n%s", diff)
	}
	if lecture == nil || lecture.URL != lessonURL {
		t.Errorf("lecture page = %+v, want URL %q", lecture, lessonURL)
	}
}

func TestMediaResolver_Resolve_SkipsStreamingSources(t *testing.T) {
	page := newFakePage(map[string]string{
		lessonURL: `<html><body>
			<video src="blob:https://school.test/1234"></video>
			<video><source src="https://cdn.test/hls/master.m3u8"></video>
			<a download href="/files/bones.webm">Download</a>
		</body></html>`,
	})
	r := NewMediaResolver(testScrapeConfig(), nil, testLogger())

	media, _, err := r.Resolve(context.Background(), page, domain.LectureRef{Title: "Bones", DetailURL: lessonURL})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if media.MediaURL != "https://school.test/files/bones.webm" {
		t.Errorf("MediaURL = %q", media.MediaURL)
	}
	if media.SuggestedFilename != "Bones.webm" {
		t.Errorf("SuggestedFilename = %q, want %q", media.SuggestedFilename, "Bones.webm")
	}
}

func TestMediaResolver_Resolve_WistiaEmbed(t *testing.T) {
	server := newWistiaServer(t)

	tests := []struct {
		name string
		html string
	}{
		{"data attribute", `<div class="wistia_embed" data-video-id="abc123"></div>`},
		{"async class", `<div class="wistia_embed wistia_async_abc123 videoFoam=true"></div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage(map[string]string{lessonURL: "<html><body>" + tt.html + "</body></html>"})
			r := NewMediaResolver(testScrapeConfig(), newTestWistia(server.URL), testLogger())

			media, _, err := r.Resolve(context.Background(), page, domain.LectureRef{Title: "Bones", DetailURL: lessonURL})
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if media.MediaURL != "https://embed.wistia.test/a/orig.bin" {
				t.Errorf("MediaURL = %q, want largest non-streaming asset", media.MediaURL)
			}
			if media.SuggestedFilename != "Bones.mp4" {
				t.Errorf("SuggestedFilename = %q, want %q", media.SuggestedFilename, "Bones.mp4")
			}
		})
	}
}

func TestMediaResolver_Resolve_WistiaErrors(t *testing.T) {
	server := newWistiaServer(t)

	for _, id := range []string{"empty", "missing"} {
		t.Run(id, func(t *testing.T) {
			page := newFakePage(map[string]string{
				lessonURL: `<html><body><div class="wistia_embed" data-video-id="` + id + `"></div></body></html>`,
			})
			r := NewMediaResolver(testScrapeConfig(), newTestWistia(server.URL), testLogger())

			_, _, err := r.Resolve(context.Background(), page, domain.LectureRef{Title: "Bones", DetailURL: lessonURL})
			if !errors.Is(err, domain.ErrMediaNotFound) {
				t.Errorf("err = %v, want ErrMediaNotFound", err)
			}
		})
	}
}

func TestMediaResolver_Resolve_NoMedia(t *testing.T) {
	page := newFakePage(map[string]string{
		lessonURL: `<html><body><div class="wistia_embed" data-video-id="abc123"></div><p>Text only</p></body></html>`,
	})
	page.waitErr = errors.New("timed out")
	r := NewMediaResolver(testScrapeConfig(), nil, testLogger())

	_, lecture, err := r.Resolve(context.Background(), page, domain.LectureRef{Title: "Bones", DetailURL: lessonURL})
	if !errors.Is(err, domain.ErrMediaNotFound) {
		t.Errorf("err = %v, want ErrMediaNotFound", err)
	}
	if lecture == nil {
		t.Error("lecture page should be returned once it was read")
	}
}

func TestMediaResolver_Resolve_MissingDetailURL(t *testing.T) {
	r := NewMediaResolver(testScrapeConfig(), nil, testLogger())

	_, _, err := r.Resolve(context.Background(), newFakePage(nil), domain.LectureRef{Title: "Bones"})
	if !errors.Is(err, domain.ErrMediaNotFound) {
		t.Errorf("err = %v, want ErrMediaNotFound", err)
	}
}

func TestMediaResolver_Resolve_NavigationFailure(t *testing.T) {
	page := newFakePage(map[string]string{})
	r := NewMediaResolver(testScrapeConfig(), nil, testLogger())

	_, _, err := r.Resolve(context.Background(), page, domain.LectureRef{Title: "Bones", DetailURL: lessonURL})
	if !errors.Is(err, domain.ErrMediaNotFound) {
		t.Errorf("err = %v, want ErrMediaNotFound", err)
	}
}

func TestMediaResolver_Resolve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := newFakePage(map[string]string{lessonURL: `<video src="/a.mp4"></video>`})
	r := NewMediaResolver(testScrapeConfig(), nil, testLogger())

	_, _, err := r.Resolve(ctx, page, domain.LectureRef{Title: "Bones", DetailURL: lessonURL})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, domain.ErrMediaNotFound) {
		t.Error("cancellation must not be reported as missing media")
	}
}

func TestMediaResolver_ResolveHTML_TitleFromPage(t *testing.T) {
	html := `<html><body>
		<div class="lesson-content-inner"><span class="fw-bold"> Weight   Painting </span></div>
		<video src="https://cdn.test/w.mov"></video>
	</body></html>`
	r := NewMediaResolver(testScrapeConfig(), nil, testLogger())

	media, err := r.ResolveHTML(context.Background(), html, lessonURL, "")
	if err != nil {
		t.Fatalf("ResolveHTML failed: %v", err)
	}
	if media.SuggestedFilename != "Weight Painting.mov" {
		t.Errorf("SuggestedFilename = %q, want %q", media.SuggestedFilename, "Weight Painting.mov")
	}
}

func TestPickLargestAsset(t *testing.T) {
	if got := pickLargestAsset(nil); got != nil {
		t.Errorf("pickLargestAsset(nil) = %+v, want nil", got)
	}

	assets := []wistiaAsset{
		{URL: "https://a.test/small.mp4", Size: 10},
		{URL: "https://a.test/big.mp4", Size: 20},
		{URL: "https://a.test/stream.m3u8", Size: 99},
	}
	if got := pickLargestAsset(assets); got == nil || got.URL != "https://a.test/big.mp4" {
		t.Errorf("pickLargestAsset() = %+v, want big.mp4", got)
	}
}

func TestParseCourseFiles(t *testing.T) {
	html := `<html><body>
	<div class="js-courseFiles-modal">
		<a href="/files/rig.blend">Rig: Final.blend</a>
		<a href="/files/textures%20pack.zip"></a>
		<a href="/files/rig.blend">duplicate</a>
		<a href="#">Close</a>
	</div>
	<div class="modal-body"><div class="text-truncate"><a href="https://cdn.test/notes.pdf">Notes.pdf</a></div></div>
	</body></html>`

	files, err := ParseCourseFiles(html, lessonURL, testScrapeConfig().CourseFilesSelector)
	if err != nil {
		t.Fatalf("ParseCourseFiles failed: %v", err)
	}

	want := []CourseFile{
		{Name: "Rig- Final.blend", URL: "https://school.test/files/rig.blend"},
		{Name: "textures pack.zip", URL: "https://school.test/files/textures%20pack.zip"},
		{Name: "Notes.pdf", URL: "https://cdn.test/notes.pdf"},
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("course files mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCourseFiles_None(t *testing.T) {
	files, err := ParseCourseFiles(`<html><body></body></html>`, lessonURL, testScrapeConfig().CourseFilesSelector)
	if err != nil {
		t.Fatalf("ParseCourseFiles failed: %v", err)
	}
	if files == nil || len(files) != 0 {
		t.Errorf("files = %#v, want empty non-nil slice", files)
	}
}

func TestHasLessonContent(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		selector string
		want     bool
	}{
		{"text lesson", `<div class="lesson-content-inner"><p>Read this</p></div>`, "div.lesson-content-inner", true},
		{"no body", `<p>Nothing here</p>`, "div.lesson-content-inner", false},
		{"disabled", `<div class="lesson-content-inner"></div>`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasLessonContent(tt.html, tt.selector); got != tt.want {
				t.Errorf("HasLessonContent() = %v, want %v", got, tt.want)
			}
		})
	}
}
