package handler

import (
	"time"

	"github.com/msomdec/todo-api/internal/domain"
)

// UserDTO is the public JSON representation of a user. It never carries
// the password hash or the session list.
type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:    u.ID,
		Email: u.Email,
	}
}

// TodoDTO is the JSON representation of a todo. CompletedAt is unix
// milliseconds, or null while the todo is open.
type TodoDTO struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Completed   bool   `json:"completed"`
	CompletedAt *int64 `json:"completedAt"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toTodoDTO(t *domain.Todo) TodoDTO {
	dto := TodoDTO{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
	if t.CompletedAt != nil {
		ms := t.CompletedAt.UnixMilli()
		dto.CompletedAt = &ms
	}
	return dto
}

func toTodoDTOs(todos []domain.Todo) []TodoDTO {
	dtos := make([]TodoDTO, len(todos))
	for i := range todos {
		dtos[i] = toTodoDTO(&todos[i])
	}
	return dtos
}
