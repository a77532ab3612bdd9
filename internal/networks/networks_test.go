package networks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.GreaterOrEqual(t, len(r.All()), 35)

	n, err := r.Lookup("baseMainnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(8453), n.ChainID)
	assert.Equal(t, "https://basescan.org", n.Explorer.BrowserURL)

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownNetwork)

	n, err = r.ByChainID(534352)
	require.NoError(t, err)
	assert.Equal(t, "scrollMainnet", n.Name)

	_, err = r.ByChainID(0)
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, n := range defaults {
		assert.False(t, seen[n.Name], n.Name)
		seen[n.Name] = true
	}
}

func TestResolve(t *testing.T) {
	n, err := Default().Lookup("mainnet")
	require.NoError(t, err)

	_, err = n.Resolve(func(string) (string, bool) { return "", false })
	assert.ErrorContains(t, err, "INFURA_KEY")

	resolved, err := n.Resolve(func(k string) (string, bool) {
		if k == "INFURA_KEY" {
			return "abc123", true
		}
		return "", false
	})
	require.NoError(t, err)
	assert.Equal(t, "https://mainnet.infura.io/v3/abc123", resolved.RPCURL)
	assert.Contains(t, n.RPCURL, "${INFURA_KEY}")
}

func TestExplorerURLs(t *testing.T) {
	addr := common.HexToAddress(DefaultAdmin)
	hash := common.HexToHash("0x01")

	e := Explorer{BrowserURL: "https://scrollscan.com/"}
	assert.Equal(t, "https://scrollscan.com/address/"+addr.Hex(), e.AddressURL(addr))
	assert.Equal(t, "https://scrollscan.com/tx/"+hash.Hex(), e.TxURL(hash))

	linea, err := Default().Lookup("lineaTestnet")
	require.NoError(t, err)
	assert.Equal(t, "https://goerli.lineascan.build/address/"+addr.Hex(), linea.Explorer.AddressURL(addr))

	assert.Empty(t, Explorer{}.TxURL(hash))
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	overlay := `
networks:
  - name: localhost
    rpcUrl: http://127.0.0.1:9545
  - name: devchain
    chainId: 4242
    rpcUrl: http://devchain:8545
    explorer:
      browserUrl: https://explorer.devchain
`
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o600))

	r := Default()
	before := len(r.All())
	require.NoError(t, r.LoadOverlay(path))

	local, err := r.Lookup("localhost")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9545", local.RPCURL)
	assert.Equal(t, uint64(31337), local.ChainID)

	dev, err := r.ByChainID(4242)
	require.NoError(t, err)
	assert.Equal(t, "devchain", dev.Name)
	assert.Len(t, r.All(), before+1)
}

func TestLoadOverlayRejectsNamelessEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("networks:\n  - chainId: 1\n"), 0o600))
	assert.Error(t, Default().LoadOverlay(path))
}
