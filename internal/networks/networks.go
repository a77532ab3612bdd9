// Package networks holds the EVM networks the deposit contract is deployed
// to, with their RPC endpoints and block explorers.
package networks

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

var ErrUnknownNetwork = errors.New("unknown network")

type Explorer struct {
	APIURL     string `yaml:"apiUrl,omitempty" json:"apiUrl,omitempty"`
	BrowserURL string `yaml:"browserUrl,omitempty" json:"browserUrl,omitempty"`
}

// Network is one deployment target. RPCURL may contain ${VAR} placeholders
// that Resolve fills from the environment. A zero ChainID means the id is
// taken from the node.
type Network struct {
	Name      string   `yaml:"name" json:"name"`
	ChainID   uint64   `yaml:"chainId,omitempty" json:"chainId,omitempty"`
	RPCURL    string   `yaml:"rpcUrl,omitempty" json:"rpcUrl,omitempty"`
	GasPrice  uint64   `yaml:"gasPrice,omitempty" json:"gasPrice,omitempty"`
	APIKeyEnv string   `yaml:"apiKeyEnv,omitempty" json:"apiKeyEnv,omitempty"`
	Explorer  Explorer `yaml:"explorer,omitempty" json:"explorer,omitempty"`
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resolve returns a copy of n with every ${VAR} in the RPC URL replaced
// using lookup. Unset variables are an error.
func (n Network) Resolve(lookup func(string) (string, bool)) (Network, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var missing []string
	n.RPCURL = placeholder.ReplaceAllStringFunc(n.RPCURL, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := lookup(name)
		if !ok || v == "" {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return n, fmt.Errorf("network %s: unset %s", n.Name, strings.Join(missing, ", "))
	}
	return n, nil
}

// APIKey reads the explorer API key from the environment.
func (n Network) APIKey() string {
	if n.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(n.APIKeyEnv)
}

func (e Explorer) base() string {
	b := strings.TrimRight(e.BrowserURL, "/")
	return strings.TrimSuffix(b, "/address")
}

func (e Explorer) AddressURL(addr common.Address) string {
	if e.BrowserURL == "" {
		return ""
	}
	return e.base() + "/address/" + addr.Hex()
}

func (e Explorer) TxURL(hash common.Hash) string {
	if e.BrowserURL == "" {
		return ""
	}
	return e.base() + "/tx/" + hash.Hex()
}

// Registry is an ordered set of networks keyed by name.
type Registry struct {
	order  []string
	byName map[string]Network
}

// Default returns a registry with the built-in networks.
func Default() *Registry {
	r := &Registry{byName: make(map[string]Network, len(defaults))}
	for _, n := range defaults {
		r.put(n)
	}
	return r
}

func (r *Registry) put(n Network) {
	if _, ok := r.byName[n.Name]; !ok {
		r.order = append(r.order, n.Name)
	}
	r.byName[n.Name] = n
}

func (r *Registry) Lookup(name string) (Network, error) {
	n, ok := r.byName[name]
	if !ok {
		return Network{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	return n, nil
}

// ByChainID returns the first registered network with the given chain id.
func (r *Registry) ByChainID(id uint64) (Network, error) {
	for _, name := range r.order {
		if n := r.byName[name]; n.ChainID == id && id != 0 {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w: chain id %d", ErrUnknownNetwork, id)
}

func (r *Registry) All() []Network {
	out := make([]Network, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

type overlayFile struct {
	Networks []Network `yaml:"networks"`
}

// LoadOverlay merges the networks listed in a YAML file into r. Fields set
// in the file replace the registered values; unknown names are added.
func (r *Registry) LoadOverlay(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open overlay: %w", err)
	}
	defer f.Close()

	var file overlayFile
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return fmt.Errorf("decode overlay: %w", err)
	}
	for i, n := range file.Networks {
		if n.Name == "" {
			return fmt.Errorf("overlay entry %d has no name", i)
		}
		r.put(merge(r.byName[n.Name], n))
	}
	return nil
}

func merge(base, over Network) Network {
	base.Name = over.Name
	if over.ChainID != 0 {
		base.ChainID = over.ChainID
	}
	if over.RPCURL != "" {
		base.RPCURL = over.RPCURL
	}
	if over.GasPrice != 0 {
		base.GasPrice = over.GasPrice
	}
	if over.APIKeyEnv != "" {
		base.APIKeyEnv = over.APIKeyEnv
	}
	if over.Explorer.APIURL != "" {
		base.Explorer.APIURL = over.Explorer.APIURL
	}
	if over.Explorer.BrowserURL != "" {
		base.Explorer.BrowserURL = over.Explorer.BrowserURL
	}
	return base
}
