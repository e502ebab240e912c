package internal

import (
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"roomchat/internal/rooms"
)

// TUIModel holds every screen of the terminal client.
type TUIModel struct {
	textInput       textinput.Model
	api             *roomAPI
	messages        []rooms.Message
	seen            map[string]struct{}
	notices         []string
	roomCode        string
	username        string
	websocketConn   *websocket.Conn
	writeMutex      sync.Mutex
	isConnected     bool
	connectionError error
	mode            appMode
	pendingAction   actionType
	loading         bool
}

type appMode int

const (
	modeMenu appMode = iota
	modeNamePrompt
	modeJoinPrompt
	modeChat
)

type actionType int

const (
	actionNone actionType = iota
	actionJoin
	actionCreate
)

// NewTUIModel starts at the menu, or goes straight to joining roomCode when
// both a code and a name are known.
func NewTUIModel(api *roomAPI, roomCode, username string) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 0
	input.Prompt = "> "

	if username == "" {
		username = defaultUsername()
	}

	model := &TUIModel{
		textInput: input,
		api:       api,
		messages:  make([]rooms.Message, 0, 64),
		seen:      make(map[string]struct{}),
		roomCode:  rooms.NormalizeCode(roomCode),
		username:  username,
	}
	model.showMenu()
	return model
}

func defaultUsername() string {
	if user := os.Getenv("ROOMCHAT_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "anon"
}

func (model *TUIModel) Init() tea.Cmd {
	if model.roomCode != "" {
		model.loading = true
		return model.enterCmd(model.username, model.roomCode, false)
	}
	return nil
}

func (model *TUIModel) showMenu() {
	model.mode = modeMenu
	model.pendingAction = actionNone
	model.textInput.SetValue("")
	model.textInput.Blur()
	model.textInput.Placeholder = ""
	model.textInput.Prompt = ""
}

func (model *TUIModel) showPrompt(mode appMode, prompt, placeholder, value string) tea.Cmd {
	model.mode = mode
	model.textInput.SetValue(value)
	model.textInput.Prompt = prompt
	model.textInput.Placeholder = placeholder
	return model.textInput.Focus()
}

func (model *TUIModel) addNotice(text string) {
	model.notices = append(model.notices, text)
	if len(model.notices) > 5 {
		model.notices = model.notices[len(model.notices)-5:]
	}
}

// appendMessage records msg unless its token was already seen through the
// history fetch.
func (model *TUIModel) appendMessage(msg rooms.Message) {
	if msg.Timestamp != "" {
		if _, dup := model.seen[msg.Timestamp]; dup {
			return
		}
		model.seen[msg.Timestamp] = struct{}{}
	}
	model.messages = append(model.messages, msg)
}

func (model *TUIModel) resetHistory(history []rooms.Message) {
	model.messages = model.messages[:0]
	model.seen = make(map[string]struct{}, len(history))
	for _, msg := range history {
		model.appendMessage(msg)
	}
}

func (model *TUIModel) closeConn(reason string) {
	if model.websocketConn == nil {
		return
	}
	model.writeMutex.Lock()
	_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	model.writeMutex.Unlock()
	_ = model.websocketConn.Close()
}
