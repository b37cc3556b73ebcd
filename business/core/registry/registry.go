// Package registry holds the set of nodes a workflow drives and the account
// bound to each of them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ardanlabs/poagov/foundation/keystore"
)

// Set of error variables for the registry.
var (
	ErrNodeIndex = errors.New("node index out of range")
	ErrUnbound   = errors.New("node has no account bound")
	ErrNoHosts   = errors.New("no hosts configured")
)

// Node is one endpoint of the network.
type Node struct {
	Name    string
	Host    string
	Port    int
	Client  *evmlite.Client
	Account keystore.Account
}

// Bound reports whether the node has an account.
func (n Node) Bound() bool {
	return !n.Account.IsZero()
}

// String implements the Stringer interface.
func (n Node) String() string {
	return fmt.Sprintf("%s(%s:%d)", n.Name, n.Host, n.Port)
}

// Config represents what is needed to build a registry.
type Config struct {
	Hosts     []string
	Port      int
	ChainID   int64
	EvHandler evmlite.EventHandler
}

// Registry is an immutable list of nodes. Binding accounts produces a new
// registry.
type Registry struct {
	nodes []Node
}

// New constructs one node per host, in the order given. Node names are
// node1, node2 and so on.
func New(cfg Config) (*Registry, error) {
	if len(cfg.Hosts) == 0 {
		return nil, ErrNoHosts
	}

	nodes := make([]Node, len(cfg.Hosts))
	for i, host := range cfg.Hosts {
		nodes[i] = Node{
			Name: fmt.Sprintf("node%d", i+1),
			Host: host,
			Port: cfg.Port,
			Client: evmlite.New(evmlite.Config{
				Host:      host,
				Port:      cfg.Port,
				ChainID:   cfg.ChainID,
				EvHandler: cfg.EvHandler,
			}),
		}
	}

	return &Registry{nodes: nodes}, nil
}

// Bind returns a new registry where node i carries account i. Nodes past
// the end of the account list stay unbound and extra accounts are ignored.
func (r *Registry) Bind(accounts []keystore.Account) *Registry {
	nodes := make([]Node, len(r.nodes))
	copy(nodes, r.nodes)

	for i := range nodes {
		nodes[i].Account = keystore.Account{}
		if i < len(accounts) {
			nodes[i].Account = accounts[i]
		}
	}

	return &Registry{nodes: nodes}
}

// Len returns the number of nodes.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// Node returns the node at the zero based index.
func (r *Registry) Node(i int) (Node, error) {
	if i < 0 || i >= len(r.nodes) {
		return Node{}, fmt.Errorf("%w: %d of %d", ErrNodeIndex, i, len(r.nodes))
	}
	return r.nodes[i], nil
}

// Signer returns the node at the index and fails if it has no account.
func (r *Registry) Signer(i int) (Node, error) {
	node, err := r.Node(i)
	if err != nil {
		return Node{}, err
	}

	if !node.Bound() {
		return Node{}, fmt.Errorf("%s: %w", node.Name, ErrUnbound)
	}

	return node, nil
}

// Nodes returns a copy of the nodes.
func (r *Registry) Nodes() []Node {
	nodes := make([]Node, len(r.nodes))
	copy(nodes, r.nodes)
	return nodes
}

// Bound returns the number of nodes with an account.
func (r *Registry) Bound() int {
	var n int
	for _, node := range r.nodes {
		if node.Bound() {
			n++
		}
	}
	return n
}

// =============================================================================

// ParseHosts splits a comma separated list of hosts. Empty items are
// dropped. When sorted is set the hosts are ordered, which keeps node
// numbering stable across machines given the same set of addresses.
func ParseHosts(ips string, sorted bool) []string {
	var hosts []string
	for _, h := range strings.Split(ips, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hosts = append(hosts, h)
		}
	}

	if sorted {
		sort.Strings(hosts)
	}

	return hosts
}
