package xstream

// WebsocketConn is the minimal shape an external websocket client (e.g.
// nhooyr.io/websocket's *websocket.Conn) must provide for FromWebsocket to
// adapt it into a ByteStream. This stays an interface-only seam: the driver
// byte-stream and router relay planes never need a websocket transport
// themselves (every real adapter wired into a component in this module
// goes over gRPC or a raw net.Conn), so no concrete implementation is
// pulled in — see DESIGN.md.
type WebsocketConn interface {
	Write(messageType int, data []byte) error
	Read() (messageType int, data []byte, err error)
	Close() error
}

const websocketBinaryMessage = 2

// FromWebsocket adapts a WebsocketConn into a ByteStream, for the optional
// websocket transport alongside TCP and Unix sockets.
func FromWebsocket(conn WebsocketConn) ByteStream {
	return &websocketStream{conn: conn}
}

type websocketStream struct {
	conn WebsocketConn
}

func (w *websocketStream) Send(p []byte) error {
	return w.conn.Write(websocketBinaryMessage, p)
}

func (w *websocketStream) Receive() ([]byte, error) {
	_, data, err := w.conn.Read()
	return data, err
}

// SendEOF closes the whole connection: this adapter has no half-close, so
// the read half ends as well.
func (w *websocketStream) SendEOF() error {
	return w.conn.Close()
}

func (w *websocketStream) Close() error { return w.conn.Close() }
