package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"roomchat/internal/rooms"
)

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	subtitleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	menuBoxStyle       = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1)
	menuItemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(1)
	menuHotkeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	menuHintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	noticeBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("95")).Padding(1, 2).MarginTop(1)
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	attachmentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Underline(true)
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	activeUserStyle    = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
	userColorPalette   = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

// the chat view shows at most this many lines of history
const visibleMessages = 200

func (model *TUIModel) View() string {
	switch model.mode {
	case modeNamePrompt:
		return model.renderPrompt("Your name", "Enter the name others will see. Esc goes back.")
	case modeJoinPrompt:
		return model.renderPrompt("Join a room", "Enter a room code and press Enter. Esc goes back.")
	case modeChat:
		return model.renderChatView()
	default:
		return model.renderMenuView()
	}
}

func (model *TUIModel) renderMenuView() string {
	title := appTitleStyle.Render("roomchat")
	subtitle := subtitleStyle.Render("Short-code chat rooms, from your terminal")

	options := []string{
		renderMenuOption("1", "Join a room"),
		renderMenuOption("2", "Create a room"),
		renderMenuOption("q", "Quit"),
	}
	viewSections := []string{
		lipgloss.JoinVertical(lipgloss.Left, title, subtitle),
		menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, options...)),
	}
	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Working…"))
	}
	if notices := model.renderSystemNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}
	viewSections = append(viewSections, menuHintStyle.Render("1) Join  •  2) Create  •  q) Quit"))
	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *TUIModel) renderPrompt(title, hint string) string {
	viewSections := []string{appTitleStyle.Render(title), menuHintStyle.Render(hint)}
	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Working…"))
	}
	if notices := model.renderSystemNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}
	viewSections = append(viewSections, inputBoxStyle.Render(model.textInput.View()))
	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *TUIModel) renderChatView() string {
	headerSegments := []string{
		"roomchat",
		fmt.Sprintf("Room %s", model.roomCode),
		fmt.Sprintf("User %s", model.username),
	}
	if model.api != nil {
		headerSegments = append(headerSegments, fmt.Sprintf("Server %s", model.api.baseURL))
	}
	header := chatHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	var statusLine string
	switch {
	case model.connectionError != nil:
		statusLine = errorStyle.Render("Connection error: " + model.connectionError.Error())
	case model.isConnected:
		statusLine = connectedStyle.Render("Connected")
	default:
		statusLine = connectingStyle.Render("Connecting…")
	}

	history := model.messages
	if len(history) > visibleMessages {
		history = history[len(history)-visibleMessages:]
	}
	var messageLines []string
	for _, msg := range history {
		messageLines = append(messageLines, model.renderChatMessage(msg))
	}
	if len(messageLines) == 0 {
		messageLines = append(messageLines, systemMessageStyle.Render("No messages yet. Share the code "+model.roomCode+" and say hi."))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		statusLine,
		messageBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, messageLines...)),
		inputBoxStyle.Render(model.textInput.View()),
		menuHintStyle.Render("/upload <path> [caption] • /leave or Esc back to menu • /quit"),
	)
}

func renderMenuOption(hotkey string, label string) string {
	key := menuHotkeyStyle.Render(hotkey)
	return lipgloss.JoinHorizontal(lipgloss.Left, key, menuItemStyle.Render(label))
}

func (model *TUIModel) renderSystemNotices() string {
	if len(model.notices) == 0 {
		return ""
	}
	lines := make([]string, 0, len(model.notices))
	for _, notice := range model.notices {
		lines = append(lines, systemMessageStyle.Render(notice))
	}
	return noticeBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderChatMessage renders one history line. Presence notices carry no
// token and read as "<name> <text>"; private notices come from "system".
func (model *TUIModel) renderChatMessage(msg rooms.Message) string {
	if msg.Name == systemName {
		return systemMessageStyle.Render(msg.Message)
	}
	if msg.Timestamp == "" && !msg.IsAttachment() {
		return systemMessageStyle.Render(msg.Name + " " + msg.Message)
	}

	nameStyle := usernameStyle.Copy().Foreground(colorForUser(msg.Name))
	if msg.Name == model.username {
		nameStyle = activeUserStyle
	}
	parts := []string{nameStyle.Render(msg.Name), ": "}
	if msg.Message != "" {
		parts = append(parts, messageBodyStyle.Render(strings.ReplaceAll(msg.Message, "\n", "\n   ")))
	}
	if msg.IsAttachment() {
		link := msg.FileURL
		if model.api != nil {
			link = model.api.absoluteURL(msg.FileURL)
		}
		if msg.Message != "" {
			parts = append(parts, " ")
		}
		parts = append(parts, attachmentStyle.Render(fmt.Sprintf("[%s] %s %s", msg.FileType, msg.Filename, link)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}

func colorForUser(name string) lipgloss.Color {
	if name == "" {
		return userColorPalette[0]
	}
	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}
