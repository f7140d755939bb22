package httpapi

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

type lessonView struct {
	domain.Lesson
	CanPlay bool `json:"canPlay"`
}

func (s *Server) handleLessons(w http.ResponseWriter, r *http.Request) {
	lessons := s.academy.Lessons(r.URL.Query().Get("q"))

	views := make([]lessonView, 0, len(lessons))
	for _, lesson := range lessons {
		playable, err := s.academy.CanPlay(lesson.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		views = append(views, lessonView{Lesson: lesson, CanPlay: playable})
	}

	s.respond(w, r, http.StatusOK, views)
}

func (s *Server) handleLesson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lesson, err := s.academy.Lesson(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	playable, err := s.academy.CanPlay(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.respond(w, r, http.StatusOK, lessonView{Lesson: lesson, CanPlay: playable})
}

func (s *Server) handleAddLesson(w http.ResponseWriter, r *http.Request) {
	var lesson domain.Lesson
	if err := s.decode(r, &lesson); err != nil {
		s.fail(w, r, err)
		return
	}

	created, err := s.academy.AddLesson(r.Context(), lesson)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, created)
}
