package gateway

import (
	"context"
	"net/http"
	"sync"
)

var (
	_ Gateway = (*Client)(nil)
	_ Gateway = (*MockGateway)(nil)
)

// Call records one request made against a MockGateway.
type Call struct {
	Method string
	Path   string
	Body   any
}

// MockGateway is a test double for Gateway. It mints sequential ids and records
// every call. Fail makes the named operation (e.g. "MoveLecture") return the error.
// When Hold is set, every call blocks until Hold is closed or the context ends.
type MockGateway struct {
	mu        sync.Mutex
	calls     []Call
	nextID    int
	Fail      map[string]error
	Sections  []SectionRecord
	Questions map[string][]QuestionRecord // keyed by quiz id
	Hold      chan struct{}
}

// NewMockGateway creates an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		nextID:    100,
		Fail:      make(map[string]error),
		Questions: make(map[string][]QuestionRecord),
	}
}

// Calls returns a copy of the recorded calls.
func (m *MockGateway) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call{}, m.calls...)
}

// CallCount returns how many calls were made.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// SetFail arms or clears a failure for op.
func (m *MockGateway) SetFail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Fail, op)
		return
	}
	m.Fail[op] = err
}

func (m *MockGateway) record(ctx context.Context, op, method, path string, body any) (ResourceID, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: method, Path: path, Body: body})
	hold := m.Hold
	m.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[op]; err != nil {
		return "", err
	}
	m.nextID++
	return Itoa(m.nextID), nil
}

func (m *MockGateway) ListSections(ctx context.Context, courseID string) ([]SectionRecord, error) {
	if _, err := m.record(ctx, "ListSections", http.MethodGet, sectionsPath(courseID), nil); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SectionRecord{}, m.Sections...), nil
}

func (m *MockGateway) CreateSection(ctx context.Context, courseID string, in SectionPayload) (SectionRecord, error) {
	id, err := m.record(ctx, "CreateSection", http.MethodPost, sectionsPath(courseID), in)
	if err != nil {
		return SectionRecord{}, err
	}
	return SectionRecord{ID: id, Title: in.Title, Description: in.Description, Position: in.Position}, nil
}

func (m *MockGateway) UpdateSection(ctx context.Context, courseID, sectionID string, in SectionPayload) (SectionRecord, error) {
	if _, err := m.record(ctx, "UpdateSection", http.MethodPatch, sectionPath(courseID, sectionID), in); err != nil {
		return SectionRecord{}, err
	}
	return SectionRecord{ID: ResourceID(sectionID), Title: in.Title, Description: in.Description, Position: in.Position}, nil
}

func (m *MockGateway) DeleteSection(ctx context.Context, courseID, sectionID string) error {
	_, err := m.record(ctx, "DeleteSection", http.MethodDelete, sectionPath(courseID, sectionID), nil)
	return err
}

func (m *MockGateway) CreateLecture(ctx context.Context, courseID, sectionID string, in LecturePayload) (LectureRecord, error) {
	id, err := m.record(ctx, "CreateLecture", http.MethodPost, lecturesPath(courseID, sectionID), in)
	if err != nil {
		return LectureRecord{}, err
	}
	return lectureRecord(id, in), nil
}

func (m *MockGateway) UpdateLecture(ctx context.Context, courseID, sectionID, lectureID string, in LecturePayload) (LectureRecord, error) {
	if _, err := m.record(ctx, "UpdateLecture", http.MethodPatch, lecturePath(courseID, sectionID, lectureID), in); err != nil {
		return LectureRecord{}, err
	}
	return lectureRecord(ResourceID(lectureID), in), nil
}

func (m *MockGateway) MoveLecture(ctx context.Context, courseID, sectionID, lectureID string, position int) (LectureRecord, error) {
	body := positionPayload{Position: position}
	if _, err := m.record(ctx, "MoveLecture", http.MethodPatch, lecturePath(courseID, sectionID, lectureID), body); err != nil {
		return LectureRecord{}, err
	}
	return LectureRecord{ID: ResourceID(lectureID), Position: position}, nil
}

func (m *MockGateway) DeleteLecture(ctx context.Context, courseID, sectionID, lectureID string) error {
	_, err := m.record(ctx, "DeleteLecture", http.MethodDelete, lecturePath(courseID, sectionID, lectureID), nil)
	return err
}

func (m *MockGateway) CreateQuiz(ctx context.Context, courseID, sectionID string, in QuizPayload) (QuizRecord, error) {
	id, err := m.record(ctx, "CreateQuiz", http.MethodPost, quizzesPath(courseID, sectionID), in)
	if err != nil {
		return QuizRecord{}, err
	}
	return quizRecord(id, in), nil
}

func (m *MockGateway) UpdateQuiz(ctx context.Context, courseID, sectionID, quizID string, in QuizPayload) (QuizRecord, error) {
	if _, err := m.record(ctx, "UpdateQuiz", http.MethodPatch, quizPath(courseID, sectionID, quizID), in); err != nil {
		return QuizRecord{}, err
	}
	return quizRecord(ResourceID(quizID), in), nil
}

func (m *MockGateway) MoveQuiz(ctx context.Context, courseID, sectionID, quizID string, position int) (QuizRecord, error) {
	body := positionPayload{Position: position}
	if _, err := m.record(ctx, "MoveQuiz", http.MethodPatch, quizPath(courseID, sectionID, quizID), body); err != nil {
		return QuizRecord{}, err
	}
	return QuizRecord{ID: ResourceID(quizID), Position: position}, nil
}

func (m *MockGateway) DeleteQuiz(ctx context.Context, courseID, sectionID, quizID string) error {
	_, err := m.record(ctx, "DeleteQuiz", http.MethodDelete, quizPath(courseID, sectionID, quizID), nil)
	return err
}

func (m *MockGateway) ListQuestions(ctx context.Context, courseID, sectionID, quizID string) ([]QuestionRecord, error) {
	if _, err := m.record(ctx, "ListQuestions", http.MethodGet, questionsPath(courseID, sectionID, quizID), nil); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]QuestionRecord{}, m.Questions[quizID]...), nil
}

func (m *MockGateway) CreateQuestions(ctx context.Context, courseID, sectionID, quizID string, in []QuestionPayload) ([]QuestionRecord, error) {
	if _, err := m.record(ctx, "CreateQuestions", http.MethodPost, questionsPath(courseID, sectionID, quizID), questionBatch{Questions: in}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QuestionRecord, len(in))
	for i, q := range in {
		m.nextID++
		out[i] = QuestionRecord{ID: Itoa(m.nextID), Question: q.Question, CorrectAnswer: q.CorrectAnswer, Answers: q.Answers}
	}
	m.Questions[quizID] = append(m.Questions[quizID], out...)
	return out, nil
}

func (m *MockGateway) UpdateQuestion(ctx context.Context, courseID, sectionID, quizID, questionID string, in QuestionPayload) (QuestionRecord, error) {
	if _, err := m.record(ctx, "UpdateQuestion", http.MethodPatch, questionPath(courseID, sectionID, quizID, questionID), in); err != nil {
		return QuestionRecord{}, err
	}
	return QuestionRecord{ID: ResourceID(questionID), Question: in.Question, CorrectAnswer: in.CorrectAnswer, Answers: in.Answers}, nil
}

func (m *MockGateway) DeleteQuestion(ctx context.Context, courseID, sectionID, quizID, questionID string) error {
	_, err := m.record(ctx, "DeleteQuestion", http.MethodDelete, questionPath(courseID, sectionID, quizID, questionID), nil)
	return err
}

func lectureRecord(id ResourceID, in LecturePayload) LectureRecord {
	return LectureRecord{
		ID:       id,
		Title:    in.Title,
		Content:  in.Content,
		Duration: in.Duration,
		VideoURL: in.VideoURL,
		Position: in.Position,
	}
}

func quizRecord(id ResourceID, in QuizPayload) QuizRecord {
	return QuizRecord{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Position:    in.Position,
		Points:      in.Points,
		TimeLimit:   in.TimeLimit,
	}
}
