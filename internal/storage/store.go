// Package storage provides the durable backends for the room table: a JSON
// snapshot file and an embedded SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"roomchat/internal/rooms"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle. Each Save rewrites the rooms and messages
// tables inside one transaction, so a reload always sees a whole snapshot.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "roomchat.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			code TEXT PRIMARY KEY,
			member_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			room_code TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			file_url TEXT NOT NULL DEFAULT '',
			file_type TEXT NOT NULL DEFAULT '',
			filename TEXT NOT NULL DEFAULT '',
			token TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (room_code, position),
			FOREIGN KEY(room_code) REFERENCES rooms(code) ON DELETE CASCADE
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load reads every room with its messages in position order.
func (s *Store) Load(ctx context.Context) (rooms.Snapshot, error) {
	snap := rooms.Snapshot{}
	rows, err := s.db.QueryContext(ctx, `SELECT code, member_count FROM rooms`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var code string
		var members int
		if err := rows.Scan(&code, &members); err != nil {
			rows.Close()
			return nil, err
		}
		snap[code] = rooms.Room{MemberCount: members, Messages: []rooms.Message{}}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	msgRows, err := s.db.QueryContext(ctx, `
		SELECT room_code, name, body, file_url, file_type, filename, token
		FROM messages
		ORDER BY room_code, position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var code, fileType string
		var msg rooms.Message
		if err := msgRows.Scan(&code, &msg.Name, &msg.Message, &msg.FileURL, &fileType, &msg.Filename, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.FileType = rooms.FileType(fileType)
		room, ok := snap[code]
		if !ok {
			continue
		}
		room.Messages = append(room.Messages, msg)
		snap[code] = room
	}
	return snap, msgRows.Err()
}

// Save replaces the stored table with snap.
func (s *Store) Save(ctx context.Context, snap rooms.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM rooms`); err != nil {
		return err
	}
	roomStmt, err := tx.PrepareContext(ctx, `INSERT INTO rooms(code, member_count) VALUES(?, ?)`)
	if err != nil {
		return err
	}
	defer roomStmt.Close()
	msgStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages(room_code, position, name, body, file_url, file_type, filename, token)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer msgStmt.Close()
	for code, room := range snap {
		if _, err = roomStmt.ExecContext(ctx, code, room.MemberCount); err != nil {
			return fmt.Errorf("insert room %s: %w", code, err)
		}
		for i, msg := range room.Messages {
			if _, err = msgStmt.ExecContext(ctx, code, i, msg.Name, msg.Message, msg.FileURL, string(msg.FileType), msg.Filename, msg.Timestamp); err != nil {
				return fmt.Errorf("insert message %s/%d: %w", code, i, err)
			}
		}
	}
	return tx.Commit()
}
