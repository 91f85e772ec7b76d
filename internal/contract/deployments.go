package contract

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/chain/eth"
	"github.com/mrz1836/conduit/internal/config"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// Deployment is a named contract instance on one network.
type Deployment struct {
	Name    string         `json:"name"`
	Kind    string         `json:"kind"`
	Address common.Address `json:"address"`
}

// AddressBook holds named deployments per network name.
type AddressBook struct {
	entries map[string]map[string]Deployment
}

// builtinDeployments are the protocol contracts known out of the box.
//
//nolint:gochecknoglobals // Static deployment table
var builtinDeployments = map[string]map[string]config.DeploymentConfig{
	"mainnet": {
		"bFactory":     {Kind: KindBFactory, Address: "0x9424B1412450D0f8Fc2255FAf6046b98213B76Bd"},
		"proxy":        {Kind: KindExchangeProxy, Address: "0x3E66B66Fd1d0b02fDa6C811Da9E0547970DB2f21"},
		"weth":         {Kind: KindTestToken, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},
		"multicall":    {Kind: KindMulticall, Address: "0xeefBa1e63905eF1D7ACbA5a8513c70307C1cE441"},
		"sorMulticall": {Kind: KindMulticall, Address: "0x514053aCEC7177e277B947b1EBb5C08AB4C4580E"},
	},
	"betanet": {
		"bFactory":     {Kind: KindBFactory, Address: "0xe6886e188752aF58056b682866E1cc264Be110F8"},
		"proxy":        {Kind: KindExchangeProxy, Address: "0x2641f150669739986CDa3ED6860DeD44BC3Cda5d"},
		"weth":         {Kind: KindTestToken, Address: "0xd0A1E359811322d97991E03f863a0C30C2cF029C"},
		"multicall":    {Kind: KindMulticall, Address: "0x2cc8688C5f75E365aaEEb4ea8D6a480405A48D2A"},
		"sorMulticall": {Kind: KindMulticall, Address: "0x71c7f1086aFca7Aa1B0D4d73cfa77979d10D3210"},
	},
}

// NewAddressBook builds an address book from the built-in deployments
// overlaid with configured ones. Configured entries win on name clashes.
func NewAddressBook(configured map[string]map[string]config.DeploymentConfig) (*AddressBook, error) {
	b := &AddressBook{entries: make(map[string]map[string]Deployment)}
	for _, src := range []map[string]map[string]config.DeploymentConfig{builtinDeployments, configured} {
		for network, deployments := range src {
			for name, d := range deployments {
				if err := b.add(network, name, d); err != nil {
					return nil, err
				}
			}
		}
	}
	return b, nil
}

func (b *AddressBook) add(network, name string, d config.DeploymentConfig) error {
	addr, err := eth.ParseAddress(d.Address)
	if err != nil {
		return cerr.WithDetails(cerr.ErrConfigInvalid, map[string]string{
			"key":    "contracts.deployments." + network + "." + name,
			"reason": err.Error(),
		})
	}

	network = strings.ToLower(network)
	if b.entries[network] == nil {
		b.entries[network] = make(map[string]Deployment)
	}
	b.entries[network][name] = Deployment{Name: name, Kind: d.Kind, Address: addr}
	return nil
}

// Lookup returns deployment name on the given network id.
func (b *AddressBook) Lookup(networkID uint64, name string) (Deployment, error) {
	network := chain.NetworkName(networkID)
	if d, ok := b.entries[network][name]; ok {
		return d, nil
	}

	names := make([]string, 0, len(b.entries[network]))
	for n := range b.entries[network] {
		names = append(names, n)
	}

	err := cerr.WithDetails(cerr.ErrNotFound, map[string]string{"deployment": name, "network": network})
	if s := suggest(name, names); s != "" {
		err = cerr.WithSuggestion(err, "did you mean \""+s+"\"?")
	}
	return Deployment{}, err
}

// List returns the deployments on the given network id, sorted by name.
func (b *AddressBook) List(networkID uint64) []Deployment {
	set := b.entries[chain.NetworkName(networkID)]
	out := make([]Deployment, 0, len(set))
	for _, d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
