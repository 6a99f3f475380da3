package domain

import "errors"

var (
	// ErrNetwork wraps any failure reaching or decoding the trivia provider, rate limiting included.
	ErrNetwork = errors.New("trivia provider unavailable")
	// ErrInvalidArgument is returned for contract violations detected before any network call.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConfiguration indicates a quiz was requested before categories were loaded.
	ErrConfiguration = errors.New("no quiz config or categories defined")
	// ErrCategoryNotFound indicates the quiz config does not match any cached category.
	ErrCategoryNotFound = errors.New("quiz category not found")
	// ErrNoNewQuestionFound is returned when every replacement attempt only yielded questions already in play.
	ErrNoNewQuestionFound = errors.New("no new question found")
	// ErrSessionNotFound is returned when a quiz maker session has not been opened.
	ErrSessionNotFound = errors.New("quiz session not found")
)
