package graph

import "sort"

// Build flattens a series tree into the ordered playable sequence: courses in
// catalog order, and within each course intro (if present), lesson files by
// position, then the end video (if present).
//
// The graph is rebuilt wholesale on every catalog refetch; callers must not
// patch items in place.
func Build(series Series) Graph {
	items := make([]Item, 0, estimateLen(series))

	for _, course := range series.Courses {
		if course.IntroVideoURL != "" {
			items = append(items, Item{
				ID:                   "intro-" + course.ID,
				Kind:                 KindIntro,
				Title:                course.Title,
				DurationLabel:        course.Progress.IntroDurationLabel,
				CourseID:             course.ID,
				SeriesID:             series.ID,
				Unlocked:             introUnlocked(course.Progress),
				CompletionPercentage: course.Progress.IntroCompletion,
				LastPositionSeconds:  course.Progress.IntroLastPosition,
				PlaybackURL:          course.IntroVideoURL,
			})
		}

		lessons := make([]LessonFile, len(course.Lessons))
		copy(lessons, course.Lessons)
		sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Position < lessons[j].Position })

		for _, l := range lessons {
			items = append(items, Item{
				ID:                   l.ID,
				Kind:                 KindLesson,
				Title:                l.Title,
				DurationLabel:        l.DurationLabel,
				CourseID:             course.ID,
				SeriesID:             series.ID,
				Position:             l.Position,
				Unlocked:             l.IsUnlocked,
				CompletionPercentage: l.CompletionPercentage,
				LastPositionSeconds:  l.LastPositionSeconds,
			})
		}

		if course.EndVideoURL != "" {
			items = append(items, Item{
				ID:                   "end-" + course.ID,
				Kind:                 KindEnd,
				Title:                course.Title,
				DurationLabel:        course.Progress.EndDurationLabel,
				CourseID:             course.ID,
				SeriesID:             series.ID,
				// Conclusion content stays locked until the catalog
				// explicitly reports it unlocked.
				Unlocked:             course.Progress.EndUnlocked,
				CompletionPercentage: course.Progress.EndCompletion,
				LastPositionSeconds:  course.Progress.EndLastPosition,
				PlaybackURL:          course.EndVideoURL,
			})
		}
	}

	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}
	return Graph{Items: items, index: index}
}

// introUnlocked applies the default-unlocked rule for intro videos.
func introUnlocked(p CourseProgress) bool {
	if p.IntroUnlocked == nil {
		return true
	}
	return *p.IntroUnlocked
}

func estimateLen(series Series) int {
	n := 0
	for _, c := range series.Courses {
		n += len(c.Lessons) + 2
	}
	return n
}
