package internal

import (
	tea "github.com/charmbracelet/bubbletea"
)

// RunClient runs the terminal client against serverURL, joining roomCode
// right away when one is given.
func RunClient(serverURL, roomCode, username string) error {
	api, err := newRoomAPI(serverURL)
	if err != nil {
		return err
	}
	program := tea.NewProgram(NewTUIModel(api, roomCode, username), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
