package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"roomchat/internal/rooms"
)

const (
	retryDelay     = 2 * time.Second
	requestTimeout = 10 * time.Second
	uploadTimeout  = 2 * time.Minute
)

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	return tea.Tick(retryDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// enterCmd binds the client's session to a room, creating one when asked.
func (model *TUIModel) enterCmd(name, code string, create bool) tea.Cmd {
	api := model.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		entry, err := api.enter(ctx, name, code, create)
		if err != nil {
			return enteredMsg{err: err}
		}
		return enteredMsg{room: entry.Room}
	}
}

// connectCmd dials first and then loads history, so nothing posted in
// between is lost; duplicates are filtered by token.
func (model *TUIModel) connectCmd() tea.Cmd {
	api := model.api
	code := model.roomCode
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		conn, err := api.dial(ctx)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		state, err := api.history(ctx, code)
		if err != nil {
			_ = conn.Close()
			return connectFailedMsg{err: err}
		}
		return connectedMsg{conn: conn, history: state.Messages}
	}
}

func (model *TUIModel) readOnceCmd() tea.Cmd {
	conn := model.websocketConn
	return func() tea.Msg {
		if conn == nil {
			return errorMsg{err: fmt.Errorf("websocket not connected")}
		}
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return errorMsg{conn: conn, err: err}
			}
			if messageType != websocket.TextMessage {
				continue
			}
			var msg rooms.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			return incomingMsg{conn: conn, msg: msg}
		}
	}
}

func (model *TUIModel) sendCmd(text string) tea.Cmd {
	conn := model.websocketConn
	return func() tea.Msg {
		if conn == nil {
			return errorMsg{err: fmt.Errorf("websocket not connected")}
		}
		encoded, err := json.Marshal(inboundFrame{Data: text})
		if err != nil {
			return errorMsg{conn: conn, err: err}
		}
		model.writeMutex.Lock()
		err = conn.WriteMessage(websocket.TextMessage, encoded)
		model.writeMutex.Unlock()
		if err != nil {
			return errorMsg{conn: conn, err: err}
		}
		return sentMsg{}
	}
}

// runCommand handles the slash commands available in the chat view.
func (model *TUIModel) runCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit":
		model.closeConn("client quit")
		return tea.Quit
	case "/leave":
		model.leaveRoom()
		return nil
	case "/upload":
		if len(fields) < 2 {
			model.appendMessage(rooms.Notice(systemName, "Usage: /upload <path> [caption]"))
			return nil
		}
		caption := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[len(fields[0]):]), fields[1]))
		return model.uploadCmd(fields[1], caption)
	}
	model.appendMessage(rooms.Notice(systemName, "Unknown command "+fields[0]))
	return nil
}

func (model *TUIModel) uploadCmd(path, caption string) tea.Cmd {
	api := model.api
	room, name := model.roomCode, model.username
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		_, err := api.upload(ctx, expandHome(path), room, name, caption)
		return uploadedMsg{filename: filepath.Base(path), err: err}
	}
}
