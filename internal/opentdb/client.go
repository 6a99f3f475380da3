package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"quiz-maker-service/internal/domain"
)

const (
	DefaultBaseURL = "https://opentdb.com"

	// MaxAmount is the largest batch the provider serves in one call.
	MaxAmount = 100

	categorySeparator = ": "
	rateLimitCode     = 5
)

type rawCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type categoriesResponse struct {
	TriviaCategories []rawCategory `json:"trivia_categories"`
}

// RawQuestion mirrors the OpenTriviaDB question payload.
type RawQuestion struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type questionsResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []RawQuestion `json:"results"`
}

// Client is the stateless gateway to the OpenTriviaDB API.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetCategories fetches the category taxonomy, normalized and in provider order.
func (c *Client) GetCategories(ctx context.Context) ([]domain.Category, error) {
	var payload categoriesResponse
	if err := c.getJSON(ctx, c.baseURL+"/api_category.php", &payload); err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(payload.TriviaCategories))
	for _, raw := range payload.TriviaCategories {
		categories = append(categories, NormalizeCategory(raw.ID, raw.Name))
	}
	return categories, nil
}

// GetQuestions fetches count multiple-choice questions for a category and difficulty.
func (c *Client) GetQuestions(ctx context.Context, categoryID int, difficulty string, count int) ([]domain.Question, error) {
	if count < 1 || count > MaxAmount {
		return nil, fmt.Errorf("%w: question count %d outside [1,%d]", domain.ErrInvalidArgument, count, MaxAmount)
	}

	query := url.Values{}
	query.Set("amount", strconv.Itoa(count))
	query.Set("category", strconv.Itoa(categoryID))
	query.Set("difficulty", difficulty)
	query.Set("type", "multiple")

	var payload questionsResponse
	if err := c.getJSON(ctx, c.baseURL+"/api.php?"+query.Encode(), &payload); err != nil {
		return nil, err
	}
	switch {
	case payload.ResponseCode == rateLimitCode:
		return nil, fmt.Errorf("%w: rate limited (response_code=%d)", domain.ErrNetwork, payload.ResponseCode)
	case payload.ResponseCode != 0:
		return nil, fmt.Errorf("%w: response_code=%d", domain.ErrNetwork, payload.ResponseCode)
	}

	questions := make([]domain.Question, 0, len(payload.Results))
	for _, raw := range payload.Results {
		questions = append(questions, toQuestion(raw))
	}
	return questions, nil
}

// NormalizeCategory splits "Parent: Sub" names into name and subcategory.
func NormalizeCategory(id int, rawName string) domain.Category {
	name, sub, found := strings.Cut(rawName, categorySeparator)
	if !found {
		return domain.Category{ID: id, Name: rawName}
	}
	return domain.Category{ID: id, Name: name, Subcategory: &sub}
}

func toQuestion(raw RawQuestion) domain.Question {
	incorrect := make([]string, 0, len(raw.IncorrectAnswers))
	for _, answer := range raw.IncorrectAnswers {
		incorrect = append(incorrect, html.UnescapeString(answer))
	}
	return domain.Question{
		Category:         html.UnescapeString(raw.Category),
		Type:             raw.Type,
		Difficulty:       raw.Difficulty,
		Question:         html.UnescapeString(raw.Question),
		CorrectAnswer:    html.UnescapeString(raw.CorrectAnswer),
		IncorrectAnswers: incorrect,
	}
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrNetwork, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: rate limited (status %d)", domain.ErrNetwork, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: opentdb returned status %d", domain.ErrNetwork, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrNetwork, err)
	}
	return nil
}
