package rooms

import "github.com/google/uuid"

// FileType classifies an attachment for rendering.
type FileType string

const (
	FileImage    FileType = "image"
	FileAudio    FileType = "audio"
	FileVideo    FileType = "video"
	FileDocument FileType = "document"
)

// Message is a single entry in a room's history. Attachment fields are empty for
// plain chat messages. Timestamp is an opaque unique token, not a clock reading.
type Message struct {
	Name      string   `json:"name"`
	Message   string   `json:"message"`
	FileURL   string   `json:"fileUrl,omitempty"`
	FileType  FileType `json:"fileType,omitempty"`
	Filename  string   `json:"filename,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// IsAttachment reports whether the message references an uploaded file.
func (m Message) IsAttachment() bool {
	return m.FileURL != ""
}

// NewTextMessage builds a chat message with a fresh token.
func NewTextMessage(name, text string) Message {
	return Message{Name: name, Message: text, Timestamp: uuid.NewString()}
}

// NewFileMessage builds an attachment message; caption may be empty.
func NewFileMessage(name, fileURL string, fileType FileType, filename, caption string) Message {
	return Message{
		Name:      name,
		Message:   caption,
		FileURL:   fileURL,
		FileType:  fileType,
		Filename:  filename,
		Timestamp: uuid.NewString(),
	}
}

const (
	EnteredNotice = "has entered the room"
	LeftNotice    = "has left the room"
)

// Notice builds a system notice. Notices are broadcast but never stored.
func Notice(name, text string) Message {
	return Message{Name: name, Message: text}
}
