package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client implements Gateway over HTTP with JSON bodies.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListSections(ctx context.Context, courseID string) ([]SectionRecord, error) {
	var out []SectionRecord
	err := c.do(ctx, http.MethodGet, sectionsPath(courseID), nil, &out)
	return out, err
}

func (c *Client) CreateSection(ctx context.Context, courseID string, in SectionPayload) (SectionRecord, error) {
	var out SectionRecord
	if err := c.do(ctx, http.MethodPost, sectionsPath(courseID), in, &out); err != nil {
		return out, err
	}
	return out, requireID(sectionsPath(courseID), out.ID)
}

func (c *Client) UpdateSection(ctx context.Context, courseID, sectionID string, in SectionPayload) (SectionRecord, error) {
	var out SectionRecord
	err := c.do(ctx, http.MethodPatch, sectionPath(courseID, sectionID), in, &out)
	return out, err
}

func (c *Client) DeleteSection(ctx context.Context, courseID, sectionID string) error {
	return c.do(ctx, http.MethodDelete, sectionPath(courseID, sectionID), nil, nil)
}

func (c *Client) CreateLecture(ctx context.Context, courseID, sectionID string, in LecturePayload) (LectureRecord, error) {
	var out LectureRecord
	if err := c.do(ctx, http.MethodPost, lecturesPath(courseID, sectionID), in, &out); err != nil {
		return out, err
	}
	return out, requireID(lecturesPath(courseID, sectionID), out.ID)
}

func (c *Client) UpdateLecture(ctx context.Context, courseID, sectionID, lectureID string, in LecturePayload) (LectureRecord, error) {
	var out LectureRecord
	err := c.do(ctx, http.MethodPatch, lecturePath(courseID, sectionID, lectureID), in, &out)
	return out, err
}

func (c *Client) MoveLecture(ctx context.Context, courseID, sectionID, lectureID string, position int) (LectureRecord, error) {
	var out LectureRecord
	err := c.do(ctx, http.MethodPatch, lecturePath(courseID, sectionID, lectureID), positionPayload{Position: position}, &out)
	return out, err
}

func (c *Client) DeleteLecture(ctx context.Context, courseID, sectionID, lectureID string) error {
	return c.do(ctx, http.MethodDelete, lecturePath(courseID, sectionID, lectureID), nil, nil)
}

func (c *Client) CreateQuiz(ctx context.Context, courseID, sectionID string, in QuizPayload) (QuizRecord, error) {
	var out QuizRecord
	if err := c.do(ctx, http.MethodPost, quizzesPath(courseID, sectionID), in, &out); err != nil {
		return out, err
	}
	return out, requireID(quizzesPath(courseID, sectionID), out.ID)
}

func (c *Client) UpdateQuiz(ctx context.Context, courseID, sectionID, quizID string, in QuizPayload) (QuizRecord, error) {
	var out QuizRecord
	err := c.do(ctx, http.MethodPatch, quizPath(courseID, sectionID, quizID), in, &out)
	return out, err
}

func (c *Client) MoveQuiz(ctx context.Context, courseID, sectionID, quizID string, position int) (QuizRecord, error) {
	var out QuizRecord
	err := c.do(ctx, http.MethodPatch, quizPath(courseID, sectionID, quizID), positionPayload{Position: position}, &out)
	return out, err
}

func (c *Client) DeleteQuiz(ctx context.Context, courseID, sectionID, quizID string) error {
	return c.do(ctx, http.MethodDelete, quizPath(courseID, sectionID, quizID), nil, nil)
}

func (c *Client) ListQuestions(ctx context.Context, courseID, sectionID, quizID string) ([]QuestionRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, questionsPath(courseID, sectionID, quizID), nil, &raw); err != nil {
		return nil, err
	}
	return decodeQuestions(raw)
}

func (c *Client) CreateQuestions(ctx context.Context, courseID, sectionID, quizID string, in []QuestionPayload) ([]QuestionRecord, error) {
	var raw json.RawMessage
	path := questionsPath(courseID, sectionID, quizID)
	if err := c.do(ctx, http.MethodPost, path, questionBatch{Questions: in}, &raw); err != nil {
		return nil, err
	}
	out, err := decodeQuestions(raw)
	if err != nil {
		return nil, err
	}
	for _, q := range out {
		if err := requireID(path, q.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func requireID(path string, id ResourceID) error {
	if id == "" {
		return fmt.Errorf("POST %s: %w", path, ErrMissingID)
	}
	return nil
}

func (c *Client) UpdateQuestion(ctx context.Context, courseID, sectionID, quizID, questionID string, in QuestionPayload) (QuestionRecord, error) {
	var out QuestionRecord
	err := c.do(ctx, http.MethodPatch, questionPath(courseID, sectionID, quizID, questionID), in, &out)
	return out, err
}

func (c *Client) DeleteQuestion(ctx context.Context, courseID, sectionID, quizID, questionID string) error {
	return c.do(ctx, http.MethodDelete, questionPath(courseID, sectionID, quizID, questionID), nil, nil)
}

// decodeQuestions accepts either a bare array or {"questions": [...]}.
func decodeQuestions(raw json.RawMessage) ([]QuestionRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []QuestionRecord
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
		return out, nil
	}
	var wrapped struct {
		Questions []QuestionRecord `json:"questions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return wrapped.Questions, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	slog.Debug("course api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Method: method, Path: path, Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
