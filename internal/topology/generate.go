package topology

import (
	"fmt"
	"strings"

	"github.com/danmuck/deployctl/internal/workspace"
)

// Request is the input that determines a topology for a fixed workspace.
type Request struct {
	NodeCount    int
	ContractPath string
	Backend      Backend
}

// Generator builds topologies for one workspace and naming convention.
type Generator struct {
	ws    workspace.Workspace
	names Names
}

func NewGenerator(ws workspace.Workspace, names Names) Generator {
	return Generator{ws: ws, names: names}
}

// Generate returns the coordinator block plus one peer block per index
// 1..NodeCount-1. It has no side effects.
func (g Generator) Generate(req Request) (Topology, error) {
	if req.NodeCount < 1 {
		return Topology{}, fmt.Errorf("%w: got %d", ErrInvalidNodeCount, req.NodeCount)
	}
	contract := strings.TrimSpace(req.ContractPath)
	if contract == "" {
		return Topology{}, ErrMissingContract
	}
	if err := req.Backend.Validate(); err != nil {
		return Topology{}, err
	}

	proxyAddr := fmt.Sprintf("%s:%d", g.names.Proxy, ChainPort)
	chainURL := "ws://" + proxyAddr
	coordinator := g.names.Coordinator()
	controlAddr := fmt.Sprintf("%s:%d", coordinator, ControlPort)

	topo := Topology{
		Proxy: ProxyBlock{
			Name:  g.names.Proxy,
			Image: g.names.ProxyImage,
		},
		Coordinator: CoordinatorBlock{
			Name:         coordinator,
			Image:        g.names.Image,
			DependsOn:    g.names.Proxy,
			StatePath:    g.ws.StatePath(0),
			ContractPath: contract,
			BuildContext: g.ws.BuildContext,
			Dockerfile:   g.ws.Dockerfile,
			Backend:      req.Backend,
			WaitFor:      proxyAddr,
			ChainURL:     chainURL,
			Ports:        []int{CoordinatorAPIPort, ControlPort},
		},
		Peers: make([]PeerBlock, 0, req.NodeCount-1),
	}

	for i := 1; i < req.NodeCount; i++ {
		topo.Peers = append(topo.Peers, PeerBlock{
			Name:           g.names.Peer(i),
			Index:          i,
			Identity:       i,
			Image:          g.names.Image,
			DependsOn:      g.names.Proxy,
			StatePath:      g.ws.StatePath(i),
			ContractPath:   contract,
			Backend:        req.Backend,
			WaitFor:        controlAddr,
			ChainURL:       chainURL,
			CoordinatorURL: fmt.Sprintf("wss://%s/ws", controlAddr),
		})
	}
	return topo, nil
}
