package internal

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/rooms"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newOfflineModel(t *testing.T) *TUIModel {
	t.Helper()
	t.Setenv("ROOMCHAT_USER", "tester")
	return NewTUIModel(nil, "", "")
}

func TestModelStartsAtMenuWithDefaultName(t *testing.T) {
	model := newOfflineModel(t)
	assert.Equal(t, modeMenu, model.mode)
	assert.Equal(t, "tester", model.username)
	assert.Nil(t, model.Init())
}

func TestModelInitJoinsGivenRoom(t *testing.T) {
	model := NewTUIModel(nil, " abcd ", "Alice")
	assert.Equal(t, "ABCD", model.roomCode)
	assert.NotNil(t, model.Init())
	assert.True(t, model.loading)
}

func TestModelJoinFlow(t *testing.T) {
	model := newOfflineModel(t)

	model.Update(keyRunes("1"))
	require.Equal(t, modeNamePrompt, model.mode)
	assert.Equal(t, actionJoin, model.pendingAction)
	assert.Equal(t, "tester", model.textInput.Value())

	model.textInput.SetValue("  ")
	model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeNamePrompt, model.mode)
	assert.Contains(t, model.notices, "Please enter a name.")

	model.textInput.SetValue("Alice")
	model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, modeJoinPrompt, model.mode)
	assert.Equal(t, "Alice", model.username)

	model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, model.notices, "Please enter a room code.")
	assert.False(t, model.loading)

	model.textInput.SetValue("abcd")
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.True(t, model.loading)

	model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeMenu, model.mode)
}

func TestModelCreateFlow(t *testing.T) {
	model := newOfflineModel(t)
	model.Update(keyRunes("c"))
	require.Equal(t, actionCreate, model.pendingAction)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.True(t, model.loading)
	assert.Equal(t, modeNamePrompt, model.mode)
}

func TestModelEnteredMsg(t *testing.T) {
	model := newOfflineModel(t)
	model.loading = true
	model.Update(enteredMsg{err: errors.New("Room does not exist.")})
	assert.False(t, model.loading)
	assert.Equal(t, modeMenu, model.mode)
	assert.Equal(t, []string{"Room does not exist."}, model.notices)

	_, cmd := model.Update(enteredMsg{room: "WXYZ"})
	assert.NotNil(t, cmd)
	assert.Equal(t, modeChat, model.mode)
	assert.Equal(t, "WXYZ", model.roomCode)
	assert.Empty(t, model.notices)
}

func TestModelNoticesAreCapped(t *testing.T) {
	model := newOfflineModel(t)
	for i := 0; i < 8; i++ {
		model.addNotice(string(rune('a' + i)))
	}
	assert.Equal(t, []string{"d", "e", "f", "g", "h"}, model.notices)
}

func TestModelHistoryDedupe(t *testing.T) {
	model := newOfflineModel(t)
	first := rooms.NewTextMessage("Alice", "one")
	second := rooms.NewTextMessage("Bob", "two")

	model.resetHistory([]rooms.Message{first})
	model.appendMessage(first)
	model.appendMessage(second)
	model.appendMessage(rooms.Notice("Carol", rooms.EnteredNotice))
	model.appendMessage(rooms.Notice("Carol", rooms.EnteredNotice))

	require.Len(t, model.messages, 4)
	assert.Equal(t, first, model.messages[0])
	assert.Equal(t, second, model.messages[1])
}

func TestModelIgnoresStaleConnections(t *testing.T) {
	model := newOfflineModel(t)
	model.mode = modeChat
	model.isConnected = true
	stale := &websocket.Conn{}

	_, cmd := model.Update(incomingMsg{conn: stale, msg: rooms.NewTextMessage("Alice", "late")})
	assert.Nil(t, cmd)
	assert.Empty(t, model.messages)

	_, cmd = model.Update(errorMsg{conn: stale, err: errors.New("old socket")})
	assert.Nil(t, cmd)
	assert.True(t, model.isConnected)

	_, cmd = model.Update(errorMsg{err: errors.New("boom")})
	assert.NotNil(t, cmd, "a reconnect is scheduled while in the chat view")
	assert.False(t, model.isConnected)
	assert.EqualError(t, model.connectionError, "boom")
}

func TestModelSlashCommands(t *testing.T) {
	model := newOfflineModel(t)
	model.mode = modeChat
	model.roomCode = "ABCD"

	assert.Nil(t, model.runCommand("/upload"))
	assert.Nil(t, model.runCommand("/dance"))
	require.Len(t, model.messages, 2)
	assert.Equal(t, "Usage: /upload <path> [caption]", model.messages[0].Message)
	assert.Equal(t, "Unknown command /dance", model.messages[1].Message)
	assert.Equal(t, systemName, model.messages[1].Name)

	assert.NotNil(t, model.runCommand("/upload ~/a.png nice pic"))

	assert.Nil(t, model.runCommand("/leave"))
	assert.Equal(t, modeMenu, model.mode)
	assert.Empty(t, model.roomCode)
	assert.Empty(t, model.messages)
}

func TestModelUploadFailureNotice(t *testing.T) {
	model := newOfflineModel(t)
	model.Update(uploadedMsg{filename: "a.exe", err: errors.New("File type not allowed")})
	require.Len(t, model.messages, 1)
	assert.Equal(t, "Upload of a.exe failed: File type not allowed", model.messages[0].Message)
}

func TestModelViewRendersEachMode(t *testing.T) {
	model := newOfflineModel(t)
	assert.Contains(t, model.View(), "Join")

	model.mode = modeChat
	model.roomCode = "ABCD"
	model.appendMessage(rooms.NewTextMessage("Alice", "hi there"))
	view := model.View()
	assert.Contains(t, view, "ABCD")
	assert.Contains(t, view, "hi there")
}
