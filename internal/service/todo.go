package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/todo-api/internal/domain"
)

const maxTodoTextLen = 1000

// TodoPatch carries the fields of a partial todo update. Nil means "not sent".
type TodoPatch struct {
	Text      *string
	Completed *bool
}

// TodoService handles todo CRUD for the owning user.
type TodoService struct {
	todos domain.TodoRepository
}

// NewTodoService creates a new TodoService.
func NewTodoService(todos domain.TodoRepository) *TodoService {
	return &TodoService{todos: todos}
}

// Create creates a todo owned by ownerID.
func (s *TodoService) Create(ctx context.Context, ownerID, text string) (*domain.Todo, error) {
	text, err := validateTodoText(text)
	if err != nil {
		return nil, err
	}

	todo := &domain.Todo{
		OwnerID: ownerID,
		Text:    text,
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return todo, nil
}

// List returns all todos owned by ownerID.
func (s *TodoService) List(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	return s.todos.ListByOwner(ctx, ownerID)
}

// Get returns one owned todo, or domain.ErrNotFound.
func (s *TodoService) Get(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	return s.todos.GetByID(ctx, ownerID, id)
}

// Update applies patch to an owned todo. Completing a todo stamps
// CompletedAt with the current time; any request that does not set
// Completed to true marks the todo as not completed. Text is only written
// when the patch carries it.
func (s *TodoService) Update(ctx context.Context, ownerID, id string, patch TodoPatch) (*domain.Todo, error) {
	var change domain.TodoChange
	if patch.Text != nil {
		text, err := validateTodoText(*patch.Text)
		if err != nil {
			return nil, err
		}
		change.Text = &text
	}
	if patch.Completed != nil && *patch.Completed {
		now := time.Now().UTC()
		change.Completed = true
		change.CompletedAt = &now
	}

	todo, err := s.todos.Update(ctx, ownerID, id, change)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return todo, nil
}

// Delete removes an owned todo and returns it.
func (s *TodoService) Delete(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	return s.todos.Delete(ctx, ownerID, id)
}

func validateTodoText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if len(text) > maxTodoTextLen {
		return "", fmt.Errorf("%w: text must be %d characters or fewer", domain.ErrInvalidInput, maxTodoTextLen)
	}
	return text, nil
}
