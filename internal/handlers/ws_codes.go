// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room socket.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Session could not be established for the caller.
	ServerShuttingDown    = 3002 // Connection closed because the server is stopping.
)
