package output

import (
	"fmt"
	"net"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

// Names of the OSC targets.
const (
	TargetMA3      = "ma3"
	TargetResolume = "resolume"
	TargetHeavyM   = "heavym"
)

// Targets lists every OSC target in a stable order.
var Targets = []string{TargetMA3, TargetResolume, TargetHeavyM}

// Sender delivers a single OSC packet.
type Sender interface {
	Send(packet osc.Packet) error
}

// SenderFactory creates a Sender for a host and port. Outputs calls it whenever a target is retargeted.
type SenderFactory func(ip string, port int) Sender

// NewUDPSender returns a go-osc UDP client for ip:port.
func NewUDPSender(ip string, port int) Sender {
	return osc.NewClient(ip, port)
}

// TargetSettings describes where an OSC target lives and whether it receives updates.
type TargetSettings struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	IP      string `json:"ip" yaml:"ip"`
	Port    int    `json:"port" yaml:"port"`
}

// Validate checks the IP is a literal address and the port is usable.
func (t TargetSettings) Validate() error {
	if net.ParseIP(strings.TrimSpace(t.IP)) == nil {
		return fmt.Errorf("invalid ip address %q", t.IP)
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("port %d not in range 1..65535", t.Port)
	}
	return nil
}

// UnknownTargetError is returned when a command names a target that does not exist.
type UnknownTargetError struct {
	Target string
}

func (e UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown OSC target: %s", e.Target)
}

// NormalizeTarget lower-cases and trims name and checks it is a known target.
func NormalizeTarget(name string) (string, error) {
	target := strings.ToLower(strings.TrimSpace(name))
	for _, t := range Targets {
		if t == target {
			return target, nil
		}
	}
	return "", UnknownTargetError{Target: target}
}

// ValidateAddress checks that address is a usable OSC address.
func ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "/") {
		return fmt.Errorf("OSC address %q must start with '/'", address)
	}
	return nil
}
