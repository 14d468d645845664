package domain

import "strconv"

// CourseOutline is the ordered structure of a course as displayed on its page.
// Chapter order is the on-page order and is never rearranged.
type CourseOutline struct {
	Title    string
	Chapters []Chapter
}

// LectureCount returns the number of lectures across all chapters.
func (o *CourseOutline) LectureCount() int {
	if o == nil {
		return 0
	}
	n := 0
	for _, ch := range o.Chapters {
		n += len(ch.Lectures)
	}
	return n
}

// MaxLecturesPerChapter returns the largest lecture count of any chapter.
func (o *CourseOutline) MaxLecturesPerChapter() int {
	if o == nil {
		return 0
	}
	n := 0
	for _, ch := range o.Chapters {
		if len(ch.Lectures) > n {
			n = len(ch.Lectures)
		}
	}
	return n
}

// Chapter is one section of a course. An empty chapter is valid and
// simply produces no downloads.
type Chapter struct {
	Title    string
	Lectures []LectureRef
}

// LectureRef points at a lecture detail page.
type LectureRef struct {
	Title     string
	DetailURL string
}

// LecturePosition is the 1-based (chapter, lecture) index of a lecture.
type LecturePosition struct {
	Chapter int `json:"chapter"`
	Lecture int `json:"lecture"`
}

// String formats the position as "chapter.lecture".
func (p LecturePosition) String() string {
	return strconv.Itoa(p.Chapter) + "." + strconv.Itoa(p.Lecture)
}

// Less orders positions chapter first, then lecture.
func (p LecturePosition) Less(other LecturePosition) bool {
	if p.Chapter != other.Chapter {
		return p.Chapter < other.Chapter
	}
	return p.Lecture < other.Lecture
}

// ResolvedMedia is the direct media location of one lecture.
// It is derived per run and never persisted.
type ResolvedMedia struct {
	MediaURL          string
	SuggestedFilename string
}
