package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"quiz-maker-service/internal/app"
	"quiz-maker-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectCategoryPayload struct {
	Name string `json:"name"`
}

type changeLinePayload struct {
	LineID   string `json:"lineId"`
	Question string `json:"question"`
}

type navigatePayload struct {
	View string `json:"view"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type sessionPayload struct {
	ID string `json:"id"`
}

type routePayload struct {
	View app.View `json:"view"`
}

type resultsPayload struct {
	Score   int         `json:"score"`
	Total   int         `json:"total"`
	Summary string      `json:"summary"`
	Band    domain.Band `json:"band"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and binds each connection to its own quiz maker session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancelFetches := context.WithCancel(r.Context())
	defer cancelFetches()

	session := h.service.Open(ctx)
	defer h.service.Close(session.ID())

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		case <-done:
		}
	}
	emitError := func(err error) {
		emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}

	emit(outboundMessage[any]{Type: "session", Payload: sessionPayload{ID: session.ID()}})

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				emit(outboundMessage[any]{Type: "state", Payload: update})
			case <-done:
				return
			}
		}
	}()

	// Provider calls run off the read loop so newQuiz can supersede them.
	var fetches sync.WaitGroup
	fetch := func(fn func()) {
		fetches.Add(1)
		go func() {
			defer fetches.Done()
			fn()
		}()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.service.Touch(ctx, session.ID())
		switch inbound.Type {
		case "initializeCategories":
			fetch(func() { session.InitializeCategories(ctx) })
		case "reload":
			fetch(func() { session.Reload(ctx) })
		case "selectCategory":
			var payload selectCategoryPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emitError(errors.New("invalid selectCategory payload"))
				continue
			}
			session.SelectCategory(payload.Name)
		case "createQuiz":
			cfg, err := decodeQuizConfig(inbound.Payload)
			if err != nil {
				emitError(errors.New("invalid createQuiz payload"))
				continue
			}
			fetch(func() {
				if _, err := session.CreateQuizLines(ctx, cfg); err != nil {
					emitError(err)
				}
			})
		case "pickAnswer":
			var answer domain.Answer
			if err := json.Unmarshal(inbound.Payload, &answer); err != nil {
				emitError(errors.New("invalid pickAnswer payload"))
				continue
			}
			session.PickAnswer(answer)
		case "changeLine":
			var payload changeLinePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emitError(errors.New("invalid changeLine payload"))
				continue
			}
			line := domain.QuizLine{ID: payload.LineID, Question: payload.Question}
			fetch(func() {
				_, _, err := session.ChangeQuizLine(ctx, line)
				switch {
				case errors.Is(err, domain.ErrNoNewQuestionFound):
					emit(outboundMessage[any]{Type: "notice", Payload: errorPayload{Message: err.Error()}})
				case err != nil:
					emitError(err)
				}
			})
		case "showResults":
			snap, err := h.service.ShowResults(ctx, session.ID())
			if err != nil {
				emitError(err)
				continue
			}
			if snap.IsComplete {
				score := domain.Score(snap.QuizLines)
				emit(outboundMessage[any]{Type: "results", Payload: resultsPayload{
					Score:   score,
					Total:   len(snap.QuizLines),
					Summary: domain.ScoreSummary(snap.QuizLines),
					Band:    domain.ScoreBand(score),
				}})
			}
		case "newQuiz":
			session.CreateNewQuiz()
		case "navigate":
			var payload navigatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emitError(errors.New("invalid navigate payload"))
				continue
			}
			view := app.ResolveView(app.View(payload.View), session.Snapshot())
			emit(outboundMessage[any]{Type: "route", Payload: routePayload{View: view}})
		default:
			emitError(errors.New("unsupported message type"))
		}
	}

	cancelFetches()
	fetches.Wait()
	close(done)
	<-updatesDone
	close(send)
	<-writerDone
}

// decodeQuizConfig maps a missing or null payload to a nil config.
func decodeQuizConfig(raw json.RawMessage) (*domain.QuizConfig, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var cfg domain.QuizConfig
	if err := json.Unmarshal(trimmed, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
