package internal

// inboundFrame is what browsers and the terminal client send over the socket.
type inboundFrame struct {
	Data string `json:"data"`
}

// systemName labels server-originated notices that are not membership events.
const systemName = "system"
