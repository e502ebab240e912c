package internal

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ServeWS upgrades the request and hands the connection to the hub. The room
// and name come from the session binding, never from the request itself; a
// request without one still gets a socket, it just never joins a group.
func (s *Server) ServeWS(writer http.ResponseWriter, request *http.Request) {
	binding, ok := BindingFromContext(request.Context())
	if !ok {
		log.Debug().Str("remote", request.RemoteAddr).Msg("websocket without session binding")
	}
	websocketConn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("upgrade error")
		return
	}
	// the request context ends once the handler returns
	s.hub.attach(context.Background(), newClient(s.hub, websocketConn, binding))
}
