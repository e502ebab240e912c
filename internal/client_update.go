package internal

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"roomchat/internal/rooms"
)

type (
	enteredMsg struct {
		room string
		err  error
	}
	connectedMsg struct {
		conn    *websocket.Conn
		history []rooms.Message
	}
	incomingMsg struct {
		conn *websocket.Conn
		msg  rooms.Message
	}
	errorMsg struct {
		conn *websocket.Conn
		err  error
	}
	connectFailedMsg struct{ err error }
	reconnectMsg     struct{}
	uploadedMsg      struct {
		filename string
		err      error
	}
	sentMsg struct{}
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		if typedMessage.Type == tea.KeyCtrlC {
			model.closeConn("client quit")
			return model, tea.Quit
		}
		switch model.mode {
		case modeMenu:
			return model.updateMenu(typedMessage)
		case modeNamePrompt:
			return model.updateNamePrompt(typedMessage)
		case modeJoinPrompt:
			return model.updateJoinPrompt(typedMessage)
		case modeChat:
			return model.updateChat(typedMessage)
		}

	case enteredMsg:
		model.loading = false
		if typedMessage.err != nil {
			model.addNotice(typedMessage.err.Error())
			model.showMenu()
			return model, nil
		}
		model.notices = nil
		model.roomCode = typedMessage.room
		model.messages = model.messages[:0]
		cmd := model.showPrompt(modeChat, "> ", "Type a message…", "")
		return model, tea.Batch(cmd, model.connectCmd())

	case connectedMsg:
		if model.mode != modeChat {
			// left the room while dialing
			_ = typedMessage.conn.Close()
			return model, nil
		}
		model.websocketConn = typedMessage.conn
		model.isConnected = true
		model.connectionError = nil
		model.resetHistory(typedMessage.history)
		return model, model.readOnceCmd()

	case incomingMsg:
		if typedMessage.conn != model.websocketConn {
			return model, nil
		}
		model.appendMessage(typedMessage.msg)
		return model, model.readOnceCmd()

	case errorMsg:
		if typedMessage.conn != nil && typedMessage.conn != model.websocketConn {
			return model, nil
		}
		if model.websocketConn != nil {
			_ = model.websocketConn.Close()
			model.websocketConn = nil
		}
		model.isConnected = false
		model.connectionError = typedMessage.err
		if model.mode == modeChat {
			return model, model.scheduleReconnect()
		}
		return model, nil

	case connectFailedMsg:
		model.isConnected = false
		model.connectionError = typedMessage.err
		if model.mode == modeChat {
			return model, model.scheduleReconnect()
		}
		return model, nil

	case reconnectMsg:
		if model.mode == modeChat && !model.isConnected {
			return model, model.connectCmd()
		}
		return model, nil

	case uploadedMsg:
		if typedMessage.err != nil {
			model.appendMessage(rooms.Notice(systemName, fmt.Sprintf("Upload of %s failed: %v", typedMessage.filename, typedMessage.err)))
		}
		return model, nil

	case sentMsg:
		return model, nil
	}
	return model, nil
}

func (model *TUIModel) updateMenu(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "1", "j", "J":
		model.pendingAction = actionJoin
		return model, model.showPrompt(modeNamePrompt, "name> ", "Enter display name…", model.username)
	case "2", "c", "C":
		model.pendingAction = actionCreate
		return model, model.showPrompt(modeNamePrompt, "name> ", "Enter display name…", model.username)
	case "q", "Q", "3", "esc":
		return model, tea.Quit
	}
	return model, nil
}

func (model *TUIModel) updateNamePrompt(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.showMenu()
		return model, nil
	case tea.KeyEnter:
		trimmed := strings.TrimSpace(model.textInput.Value())
		if trimmed == "" {
			model.addNotice("Please enter a name.")
			return model, nil
		}
		model.username = trimmed
		switch model.pendingAction {
		case actionJoin:
			return model, model.showPrompt(modeJoinPrompt, "room> ", "Enter room code…", "")
		case actionCreate:
			model.loading = true
			model.textInput.SetValue("")
			return model, model.enterCmd(model.username, "", true)
		}
		model.showMenu()
		return model, nil
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) updateJoinPrompt(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.showMenu()
		return model, nil
	case tea.KeyEnter:
		code := rooms.NormalizeCode(model.textInput.Value())
		if code == "" {
			model.addNotice("Please enter a room code.")
			return model, nil
		}
		model.loading = true
		return model, model.enterCmd(model.username, code, false)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) updateChat(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.leaveRoom()
		return model, nil
	case tea.KeyEnter:
		trimmed := strings.TrimSpace(model.textInput.Value())
		if strings.HasPrefix(trimmed, "/") {
			model.textInput.SetValue("")
			return model, model.runCommand(trimmed)
		}
		if trimmed != "" && model.isConnected {
			model.textInput.SetValue("")
			return model, model.sendCmd(trimmed)
		}
		return model, nil
	}
	var command tea.Cmd
	model.textInput, command = model.textInput.Update(key)
	return model, command
}

func (model *TUIModel) leaveRoom() {
	model.closeConn("left room")
	model.websocketConn = nil
	model.isConnected = false
	model.connectionError = nil
	model.roomCode = ""
	model.messages = model.messages[:0]
	model.seen = make(map[string]struct{})
	model.showMenu()
}
