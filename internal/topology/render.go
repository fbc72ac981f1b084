package topology

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Header is the first line of every rendered document.
const Header = "# Machine generated by `deployctl`. Do not version control.\n"

const (
	composeVersion = "3"
	indent         = 4
)

type composeBuild struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile"`
}

// composeService field order is the rendered key order.
type composeService struct {
	DependsOn   []string      `yaml:"depends_on,omitempty"`
	Volumes     []string      `yaml:"volumes,omitempty"`
	Image       string        `yaml:"image"`
	Build       *composeBuild `yaml:"build,omitempty"`
	CapAdd      []string      `yaml:"cap_add,omitempty,flow"`
	Restart     string        `yaml:"restart,omitempty"`
	Environment []string      `yaml:"environment,omitempty"`
	Ports       []string      `yaml:"ports,omitempty"`
}

type namedService struct {
	name string
	svc  composeService
}

// Render serializes t as a docker-compose document. Services keep topology
// order (proxy, coordinator, peers by index), so equal input yields equal bytes.
func Render(t Topology) ([]byte, error) {
	services := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range orderedServices(t) {
		var value yaml.Node
		if err := value.Encode(s.svc); err != nil {
			return nil, fmt.Errorf("topology: encode service %s: %w", s.name, err)
		}
		services.Content = append(services.Content, scalar(s.name, 0), &value)
	}

	root := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			scalar("version", 0),
			scalar(composeVersion, yaml.SingleQuotedStyle),
			scalar("services", 0),
			services,
		},
	}

	var buf bytes.Buffer
	buf.WriteString(Header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("topology: render: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("topology: render: %w", err)
	}
	return buf.Bytes(), nil
}

func orderedServices(t Topology) []namedService {
	out := make([]namedService, 0, 2+len(t.Peers))
	out = append(out, namedService{name: t.Proxy.Name, svc: proxyService(t.Proxy)})
	out = append(out, namedService{name: t.Coordinator.Name, svc: coordinatorService(t.Coordinator)})
	for _, p := range t.Peers {
		out = append(out, namedService{name: p.Name, svc: peerService(p)})
	}
	return out
}

func proxyService(p ProxyBlock) composeService {
	return composeService{
		Image:   p.Image,
		CapAdd:  []string{"NET_ADMIN", "NET_RAW"},
		Restart: "on-failure",
	}
}

func coordinatorService(c CoordinatorBlock) composeService {
	ports := make([]string, 0, len(c.Ports))
	for _, port := range c.Ports {
		p := strconv.Itoa(port)
		ports = append(ports, p+":"+p)
	}
	return composeService{
		DependsOn: []string{c.DependsOn},
		Volumes:   volumes(c.StatePath, c.ContractPath),
		Image:     c.Image,
		Build: &composeBuild{
			Context:    c.BuildContext,
			Dockerfile: c.Dockerfile,
		},
		Environment: []string{
			"ID=0",
			"WAIT_FOR=" + c.WaitFor,
			"ETH_URL=" + c.ChainURL,
			"AVM=" + string(c.Backend),
		},
		Ports: ports,
	}
}

func peerService(p PeerBlock) composeService {
	return composeService{
		DependsOn: []string{p.DependsOn},
		Volumes:   volumes(p.StatePath, p.ContractPath),
		Image:     p.Image,
		Environment: []string{
			"ID=" + strconv.Itoa(p.Identity),
			"WAIT_FOR=" + p.WaitFor,
			"ETH_URL=" + p.ChainURL,
			"COORDINATOR_URL=" + p.CoordinatorURL,
			"AVM=" + string(p.Backend),
		},
	}
}

func volumes(statePath, contractPath string) []string {
	return []string{
		statePath + ":" + containerStatePath,
		contractPath + ":" + containerContractPath,
	}
}

func scalar(value string, style yaml.Style) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: style}
}
