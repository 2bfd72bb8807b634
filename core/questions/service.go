// Package questions generates interview questions with a hosted language
// model and stores the resulting interview.
package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-interview/core/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrMalformedQuestions = errors.New("malformed questions payload")
)

const defaultAmount = 5

const systemPrompt = `You prepare questions for a voice interview. The questions are read out by a voice assistant, so do not use "/", "*" or any other special characters that would break the voice flow.`

const promptTemplate = `Generate interview questions for the following job description and return only the questions.
Job Type: %s
Role: %s
Level: %s
Tech Stack: %s
Number of Questions: %d`

var coverImages = []string{
	"/covers/adobe.png",
	"/covers/amazon.png",
	"/covers/facebook.png",
	"/covers/hostinger.png",
	"/covers/pinterest.png",
	"/covers/quora.png",
	"/covers/reddit.png",
	"/covers/skype.png",
	"/covers/spotify.png",
	"/covers/telegram.png",
	"/covers/tiktok.png",
	"/covers/yahoo.png",
}

// Prompter produces model output that follows the JSON schema of
// outputSchema and returns it undecoded.
type Prompter interface {
	PromptJSONSchema(ctx context.Context, systemPrompt string, prompt string, outputSchema any) (string, error)
}

type Store interface {
	Put(ctx context.Context, interview store.Interview) error
	ListByUser(ctx context.Context, userID string) ([]store.Interview, error)
}

type questionList struct {
	Questions []string `json:"questions" jsonschema:"title=Questions,description=Interview questions in the order they should be asked"`
}

type Result struct {
	Interview store.Interview
	// Raw is the payload returned by the model.
	Raw string
}

type Service struct {
	prompter Prompter
	store    Store
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(prompter Prompter, store Store, opts ...ServiceOption) *Service {
	s := &Service{prompter: prompter, store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate prompts the model for questions and stores the interview.
//
// Requests without a user ID are rejected with ErrUnauthorized before the
// model or the store are touched. A model answer that is not valid JSON is
// reported as ErrMalformedQuestions.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, ErrUnauthorized
	}

	ctx, span := tracer.Start(ctx, "generate interview questions")
	defer span.End()

	amount := int(req.Amount)
	if amount <= 0 {
		amount = defaultAmount
	}
	span.SetAttributes(
		attribute.String("interview.role", req.Role),
		attribute.String("interview.level", req.Level),
		attribute.Int("interview.amount", amount),
	)

	prompt := fmt.Sprintf(promptTemplate, req.Kind, req.Role, req.Level, req.Stack, amount)
	raw, err := s.prompter.PromptJSONSchema(ctx, systemPrompt, prompt, questionList{})
	if err != nil {
		err = fmt.Errorf("failed to generate questions: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	questions, err := parseQuestions(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var interview store.Interview
	if err := copier.Copy(&interview, &req); err != nil {
		return nil, fmt.Errorf("failed to build interview record: %w", err)
	}
	now := s.now().UTC()
	interview.ID = uuid.NewString()
	interview.TechStack = splitTechStack(req.Stack)
	interview.Questions = questions
	interview.Finalized = true
	interview.CoverImage = coverImages[rand.IntN(len(coverImages))]
	interview.CreatedAt = now
	interview.UpdatedAt = now

	if err := s.store.Put(ctx, interview); err != nil {
		err = fmt.Errorf("failed to store interview: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	questionsGenerated.Add(ctx, 1)
	return &Result{Interview: interview, Raw: raw}, nil
}

// List returns the stored interviews of a user.
func (s *Service) List(ctx context.Context, userID string) ([]store.Interview, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	interviews, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	return interviews, nil
}

// parseQuestions accepts the schema shaped object as well as a bare JSON
// array of questions.
func parseQuestions(raw string) ([]string, error) {
	var list questionList
	if err := json.Unmarshal([]byte(raw), &list); err == nil && list.Questions != nil {
		return list.Questions, nil
	}

	var questions []string
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedQuestions, err)
	}
	return questions, nil
}
