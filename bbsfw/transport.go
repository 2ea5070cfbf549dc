package bbsfw

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the fixed UART rate of the controller's comm port.
const DefaultBaud = 1200

// openLink opens the transport behind a connection string: use
// socket://[host]:[port] or tcp://[host]:[port] for a serial-over-TCP
// bridge, anything else is taken as a serial device path.
func openLink(link string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}

	if u.Scheme == "socket" || u.Scheme == "tcp" {
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		conn.(*net.TCPConn).SetKeepAlive(true)
		conn.(*net.TCPConn).SetKeepAlivePeriod(30 * time.Second)
		return conn, nil
	}
	if u.Scheme == "file" || u.Scheme == "" {
		return serial.OpenPort(&serial.Config{Name: u.Path, Baud: DefaultBaud, Size: 8, Parity: serial.ParityNone, StopBits: serial.Stop1})
	}

	return nil, fmt.Errorf("can not find a valid connection string in %q", link)
}
