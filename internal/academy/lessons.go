package academy

import (
	"context"
	"fmt"
	"strings"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/entitlement"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/storage"
)

const uploadDateLayout = "2006-01-02"

// Lessons returns the catalog filtered by a title or category substring.
func (a *Academy) Lessons(query string) []domain.Lesson {
	a.mu.Lock()
	defer a.mu.Unlock()

	query = strings.TrimSpace(query)
	out := make([]domain.Lesson, 0, len(a.lessons))
	for _, l := range a.lessons {
		if query == "" || strings.Contains(l.Title, query) || strings.Contains(l.Category, query) {
			out = append(out, l)
		}
	}
	return out
}

func (a *Academy) Lesson(id string) (domain.Lesson, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lessonLocked(id)
}

func (a *Academy) lessonLocked(id string) (domain.Lesson, error) {
	for _, l := range a.lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Lesson{}, apperrors.NewNotFoundError(fmt.Sprintf("lesson %q not found", id))
}

// CanPlay reports whether the current user may play the lesson now.
func (a *Academy) CanPlay(id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lesson, err := a.lessonLocked(id)
	if err != nil {
		return false, err
	}
	return entitlement.CanPlay(lesson, a.entitlementLocked()), nil
}

// AddLesson appends a lesson to the catalog. The id and upload date are
// assigned here.
func (a *Academy) AddLesson(ctx context.Context, lesson domain.Lesson) (domain.Lesson, error) {
	lesson.Title = strings.TrimSpace(lesson.Title)
	lesson.AudioURL = strings.TrimSpace(lesson.AudioURL)

	a.mu.Lock()
	defer a.mu.Unlock()

	lesson.ID = a.newID()
	lesson.UploadDate = a.clock().Format(uploadDateLayout)

	if err := a.validate.Struct(lesson); err != nil {
		return domain.Lesson{}, a.validationError(err)
	}

	lessons := make([]domain.Lesson, 0, len(a.lessons)+1)
	lessons = append(lessons, a.lessons...)
	lessons = append(lessons, lesson)
	a.lessons = lessons

	if err := a.save(ctx, storage.SlotLessons, a.lessons); err != nil {
		return domain.Lesson{}, err
	}
	return lesson, nil
}
