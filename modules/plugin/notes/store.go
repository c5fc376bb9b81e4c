package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	// shortIDLen is the length of the id prefix shown to users.
	shortIDLen = 8

	// timeLayout has a fixed width so created_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var (
	// ErrNotFound is returned when no note of the chat matches an id.
	ErrNotFound = errors.New("notes: no such note")
	// ErrAmbiguous is returned when an id prefix matches several notes.
	ErrAmbiguous = errors.New("notes: id prefix matches several notes")
)

// Note is one stored note.
type Note struct {
	ID        string
	ChatID    int64
	UserID    int64
	Author    string
	Content   string
	CreatedAt time.Time
}

// ShortID is the id prefix users type to refer to the note.
func (n Note) ShortID() string {
	if len(n.ID) < shortIDLen {
		return n.ID
	}
	return n.ID[:shortIDLen]
}

// Store keeps notes in SQLite, partitioned by chat.
type Store struct {
	db    *sql.DB
	newID func() string
	now   func() time.Time
}

// OpenStore opens (creating if needed) the database at path. The pool is
// limited to one connection since SQLite serialises writes.
func OpenStore(ctx context.Context, path string, wal bool, busyTimeout int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("notes: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("notes: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if wal {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("notes: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notes: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:    db,
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores a note and returns it.
func (s *Store) Add(ctx context.Context, chatID, userID int64, author, content string) (Note, error) {
	n := Note{
		ID:        s.newID(),
		ChatID:    chatID,
		UserID:    userID,
		Author:    author,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, chat_id, user_id, author, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.ChatID, n.UserID, n.Author, n.Content, n.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Note{}, fmt.Errorf("notes: add: %w", err)
	}
	return n, nil
}

// List returns up to limit notes of chatID, oldest first.
func (s *Store) List(ctx context.Context, chatID int64, limit int) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, user_id, author, content, created_at
		FROM notes
		WHERE chat_id = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Note
	for rows.Next() {
		var (
			n       Note
			created string
		)
		if err := rows.Scan(&n.ID, &n.ChatID, &n.UserID, &n.Author, &n.Content, &created); err != nil {
			return nil, fmt.Errorf("notes: scan: %w", err)
		}
		n.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notes: list rows: %w", err)
	}
	return out, nil
}

// Count returns the number of notes of chatID.
func (s *Store) Count(ctx context.Context, chatID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM notes WHERE chat_id = ?", chatID).Scan(&n); err != nil {
		return 0, fmt.Errorf("notes: count: %w", err)
	}
	return n, nil
}

// Delete removes the note of chatID whose id is, or starts with, id.
func (s *Store) Delete(ctx context.Context, chatID int64, id string) (Note, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Note{}, ErrNotFound
	}
	if _, err := uuid.Parse(id); err != nil && !isHexPrefix(id) {
		return Note{}, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Note{}, fmt.Errorf("notes: begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		"SELECT id, content FROM notes WHERE chat_id = ? AND id LIKE ? || '%' LIMIT 2",
		chatID, id,
	)
	if err != nil {
		return Note{}, fmt.Errorf("notes: find: %w", err)
	}
	var matches []Note
	for rows.Next() {
		n := Note{ChatID: chatID}
		if err := rows.Scan(&n.ID, &n.Content); err != nil {
			_ = rows.Close()
			return Note{}, fmt.Errorf("notes: scan: %w", err)
		}
		matches = append(matches, n)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return Note{}, fmt.Errorf("notes: find rows: %w", err)
	}

	switch len(matches) {
	case 0:
		return Note{}, ErrNotFound
	case 1:
	default:
		return Note{}, ErrAmbiguous
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", matches[0].ID); err != nil {
		return Note{}, fmt.Errorf("notes: delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Note{}, fmt.Errorf("notes: commit delete: %w", err)
	}
	return matches[0], nil
}

// isHexPrefix reports whether s can be the start of a uuid string. It keeps
// LIKE wildcards out of the query.
func isHexPrefix(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && r != '-' {
			return false
		}
	}
	return true
}
