package topology

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidNodeCount = errors.New("topology: node count must be at least 1")
	ErrUnknownBackend   = errors.New("topology: unknown backend")
	ErrMissingContract  = errors.New("topology: contract path required")
)

// Backend selects the validator execution engine used by every node.
type Backend string

const (
	BackendCPP  Backend = "cpp"
	BackendGo   Backend = "go"
	BackendTest Backend = "test"

	DefaultBackend = BackendCPP
)

// Backends lists the accepted backend selectors in display order.
func Backends() []Backend {
	return []Backend{BackendCPP, BackendGo, BackendTest}
}

// ParseBackend normalizes raw and rejects selectors outside the closed set.
func ParseBackend(raw string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(raw)))
	if b == "" {
		return DefaultBackend, nil
	}
	if err := b.Validate(); err != nil {
		return "", err
	}
	return b, nil
}

func (b Backend) Validate() error {
	for _, known := range Backends() {
		if b == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownBackend, string(b))
}

const (
	ChainPort          = 7546
	CoordinatorAPIPort = 1235
	ControlPort        = 1236

	containerStatePath    = "/home/user/state"
	containerContractPath = "/home/user/contract.ao"
)

// Names fixes the service and image naming convention of one deployment.
// Every container this tool creates carries Prefix in its name.
type Names struct {
	Prefix     string
	Image      string
	Proxy      string
	ProxyImage string
}

func DefaultNames() Names {
	return Names{
		Prefix:     "arb-validator",
		Image:      "arb-validator",
		Proxy:      "dockerhost",
		ProxyImage: "qoomon/docker-host",
	}
}

func (n Names) Coordinator() string {
	return n.Prefix + "-coordinator"
}

func (n Names) Peer(index int) string {
	return fmt.Sprintf("%s%d", n.Prefix, index)
}

// ProxyBlock is the shared network-proxy host every node reaches the chain through.
type ProxyBlock struct {
	Name  string
	Image string
}

// CoordinatorBlock is the header node: it owns the image build and the
// published coordination ports.
type CoordinatorBlock struct {
	Name         string
	Image        string
	DependsOn    string
	StatePath    string
	ContractPath string
	BuildContext string
	Dockerfile   string
	Backend      Backend
	WaitFor      string
	ChainURL     string
	Ports        []int
}

// PeerBlock is one non-coordinator validator using the prebuilt image.
type PeerBlock struct {
	Name           string
	Index          int
	Identity       int
	Image          string
	DependsOn      string
	StatePath      string
	ContractPath   string
	Backend        Backend
	WaitFor        string
	ChainURL       string
	CoordinatorURL string
}

// Topology is the full cluster description for one deploy.
type Topology struct {
	Proxy       ProxyBlock
	Coordinator CoordinatorBlock
	Peers       []PeerBlock
}

// NodeCount returns the number of validators described, coordinator included.
func (t Topology) NodeCount() int {
	return 1 + len(t.Peers)
}
