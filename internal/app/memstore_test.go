package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/planbox/internal/model"
	"github.com/iliyamo/planbox/internal/repository"
)

// memDB mimics the owner-scoped behaviour of the MySQL repositories.
type memDB struct {
	mu    sync.Mutex
	seq   int
	users map[string]model.User
	boxes map[string]model.Box
	todos map[string]model.Todo
	notes map[string]model.Note
}

func newMemDB() *memDB {
	return &memDB{
		users: map[string]model.User{},
		boxes: map[string]model.Box{},
		todos: map[string]model.Todo{},
		notes: map[string]model.Note{},
	}
}

func (m *memDB) next(prefix string) (string, time.Time) {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq), time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
}

func missing(entity string) error {
	return &repository.Error{Entity: entity, Err: repository.ErrNotFound}
}

func (m *memDB) ownedBox(id, owner string) (model.Box, bool) {
	b, ok := m.boxes[id]
	return b, ok && b.UserID == owner
}

type memUsers struct{ *memDB }

func (m memUsers) Create(_ context.Context, email string, name *string, hash string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return model.User{}, &repository.Error{Entity: "user", Err: repository.ErrDuplicate}
		}
	}
	id, now := m.next("user")
	u := model.User{ID: id, Email: email, Name: name, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	m.users[id] = u
	return u, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, missing("user")
}

func (m memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, missing("user")
	}
	return u, nil
}

func (m memUsers) UpdateName(_ context.Context, id string, name *string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, missing("user")
	}
	u.Name = name
	m.users[id] = u
	return u, nil
}

func (m memUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return missing("user")
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

type memBoxes struct{ *memDB }

func (m memBoxes) List(_ context.Context, owner string) ([]model.Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Box{}
	for _, b := range m.boxes {
		if b.UserID == owner {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m memBoxes) Get(_ context.Context, id, owner string) (model.Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.ownedBox(id, owner)
	if !ok {
		return model.Box{}, missing("box")
	}
	return b, nil
}

func (m memBoxes) nameTaken(owner, name, except string) bool {
	for _, b := range m.boxes {
		if b.UserID == owner && b.Name == name && b.ID != except {
			return true
		}
	}
	return false
}

func (m memBoxes) Create(_ context.Context, owner, name string) (model.Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(owner, name, "") {
		return model.Box{}, &repository.Error{Entity: "box", Err: repository.ErrDuplicate}
	}
	id, now := m.next("box")
	b := model.Box{ID: id, UserID: owner, Name: name, CreatedAt: now, UpdatedAt: now}
	m.boxes[id] = b
	return b, nil
}

func (m memBoxes) Rename(_ context.Context, id, owner, name string) (model.Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.ownedBox(id, owner)
	if !ok {
		return model.Box{}, missing("box")
	}
	if m.nameTaken(owner, name, id) {
		return model.Box{}, &repository.Error{Entity: "box", Err: repository.ErrDuplicate}
	}
	_, b.UpdatedAt = m.next("tick")
	b.Name = name
	m.boxes[id] = b
	return b, nil
}

func (m memBoxes) Delete(_ context.Context, id, owner string) (model.Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.ownedBox(id, owner)
	if !ok {
		return model.Box{}, missing("box")
	}
	delete(m.boxes, id)
	delete(m.notes, id)
	for tid, t := range m.todos {
		if t.BoxID == id {
			delete(m.todos, tid)
		}
	}
	return b, nil
}

type memTodos struct{ *memDB }

func (m memTodos) List(_ context.Context, boxID, owner string) ([]model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedBox(boxID, owner); !ok {
		return nil, missing("box")
	}
	out := []model.Todo{}
	for _, t := range m.todos {
		if t.BoxID == boxID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m memTodos) Create(_ context.Context, boxID, owner, text string, done bool, deadline *time.Time) (model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedBox(boxID, owner); !ok {
		return model.Todo{}, missing("box")
	}
	id, now := m.next("todo")
	t := model.Todo{ID: id, BoxID: boxID, Todo: text, Done: done, Deadline: deadline, CreatedAt: now, UpdatedAt: now}
	m.todos[id] = t
	return t, nil
}

func (m memTodos) Update(_ context.Context, id, boxID, owner string, p model.TodoPatch) (model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if _, owned := m.ownedBox(boxID, owner); !ok || !owned || t.BoxID != boxID {
		return model.Todo{}, missing("todo")
	}
	if p.Todo != nil {
		t.Todo = *p.Todo
	}
	if p.Done != nil {
		t.Done = *p.Done
	}
	switch {
	case p.ClearDeadline:
		t.Deadline = nil
	case p.Deadline != nil:
		t.Deadline = p.Deadline
	}
	_, t.UpdatedAt = m.next("tick")
	m.todos[id] = t
	return t, nil
}

func (m memTodos) Delete(_ context.Context, id, boxID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if _, owned := m.ownedBox(boxID, owner); !ok || !owned || t.BoxID != boxID {
		return missing("todo")
	}
	delete(m.todos, id)
	return nil
}

type memNotes struct{ *memDB }

func (m memNotes) Get(_ context.Context, boxID, owner string) (model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedBox(boxID, owner); !ok {
		return model.Note{}, missing("box")
	}
	if n, ok := m.notes[boxID]; ok {
		return n, nil
	}
	return model.Note{BoxID: boxID}, nil
}

func (m memNotes) Save(_ context.Context, boxID, owner, content string) (model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedBox(boxID, owner); !ok {
		return model.Note{}, missing("box")
	}
	n, ok := m.notes[boxID]
	if !ok {
		n.ID, n.CreatedAt = m.next("note")
		n.BoxID = boxID
	}
	_, n.UpdatedAt = m.next("tick")
	n.Content = content
	m.notes[boxID] = n
	return n, nil
}
