package bbsfw

import "go.bug.st/serial/enumerator"

// PortInfo is one serial port candidate for Connect.
type PortInfo struct {
	Device      string `json:"device"`
	Description string `json:"description,omitempty"`
}

// ListPorts enumerates the serial ports present on the host. USB ports carry
// their product string as description.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{Device: d.Name, Description: d.Product})
	}
	return ports, nil
}
