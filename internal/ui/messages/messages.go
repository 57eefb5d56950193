package messages

// ResponseMsg niesie fragment odpowiedzi serwera sterującego
type ResponseMsg struct {
	Text string
}

// DisconnectedMsg: serwer zamknął połączenie albo wystąpił błąd odczytu.
// Err == nil oznacza zamknięcie po naszej stronie.
type DisconnectedMsg struct {
	Err error
}

type ConnectedMsg struct {
	Addr string
}

type ConnectFailedMsg struct {
	Err error
}

type SendFailedMsg struct {
	Err error
}
