package graph

// Wire representation of the catalog service's series tree, including the
// per-course progress summary it embeds. Decoded directly by the catalog
// client and consumed by Build.

// Series is one curriculum with its ordered list of courses.
type Series struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Courses []Course `json:"courses"`
}

// Course carries optional intro/end videos, ordered lesson files and the
// catalog's progress summary for the bracketing videos.
type Course struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	IntroVideoURL string         `json:"intro_video_url,omitempty"`
	EndVideoURL   string         `json:"end_video_url,omitempty"`
	Lessons       []LessonFile   `json:"lessons"`
	Progress      CourseProgress `json:"progress"`
}

// LessonFile is one lesson video inside a course. Unlock state is
// server-authoritative.
type LessonFile struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	DurationLabel        string  `json:"duration"`
	Position             int     `json:"position"`
	IsUnlocked           bool    `json:"is_unlocked"`
	CompletionPercentage int     `json:"completion_percentage"`
	LastPositionSeconds  float64 `json:"last_position"`
}

// CourseProgress is the catalog's unlock/progress summary for a course's
// intro and end videos. IntroUnlocked is a pointer because intro videos
// default to unlocked when the catalog is silent.
type CourseProgress struct {
	IntroUnlocked        *bool   `json:"intro_unlocked,omitempty"`
	EndUnlocked          bool    `json:"end_unlocked"`
	IntroCompletion      int     `json:"intro_completion_percentage"`
	EndCompletion        int     `json:"end_completion_percentage"`
	IntroLastPosition    float64 `json:"intro_last_position"`
	EndLastPosition      float64 `json:"end_last_position"`
	IntroDurationLabel   string  `json:"intro_duration"`
	EndDurationLabel     string  `json:"end_duration"`
}
