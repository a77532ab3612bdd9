package networks

// Named accounts used by the deployment scripts.
const (
	DefaultAdmin    = "0x0d0D5Ff3cFeF8B7B2b1cAC6B6C27Fd0846c09361"
	DefaultOperator = "0x381c031baa5995d0cc52386508050ac947780815"
)

const (
	gwei = 1_000_000_000
)

var defaults = []Network{
	{Name: "localhost", ChainID: 31337, RPCURL: "http://127.0.0.1:8545"},
	{Name: "baseLocal", RPCURL: "http://localhost:8545", GasPrice: gwei},
	{
		Name: "zkEVMMainnet", ChainID: 1101, RPCURL: "https://zkevm-rpc.com", APIKeyEnv: "POLYGONZKSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://explorer.mainnet.zkevm-test.net/api", BrowserURL: "https://explorer.mainnet.zkevm-test.net/"},
	},
	{
		Name: "zkEVMTestnet", ChainID: 1442, RPCURL: "https://rpc.public.zkevm-test.net", APIKeyEnv: "POLYGONZKSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://testnet-zkevm.polygonscan.com/api", BrowserURL: "https://testnet-zkevm.polygonscan.com"},
	},
	{
		Name: "scrollSepolia", ChainID: 534351, RPCURL: "https://sepolia-rpc.scroll.io", APIKeyEnv: "SCROLLSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api-sepolia.scrollscan.com/api", BrowserURL: "https://sepolia.scrollscan.com"},
	},
	{
		Name: "scrollMainnet", ChainID: 534352, RPCURL: "https://rpc.scroll.io/", GasPrice: 424483200, APIKeyEnv: "SCROLLSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api.scrollscan.com/api", BrowserURL: "https://scrollscan.com/"},
	},
	{
		Name: "optimismMainnet", ChainID: 10, RPCURL: "https://mainnet.optimism.io", APIKeyEnv: "OPTIMIZM_API_KEY",
		Explorer: Explorer{APIURL: "https://api-optimistic.etherscan.io/api", BrowserURL: "https://explorer.optimism.io"},
	},
	{
		Name: "optimismGoerli", ChainID: 420, RPCURL: "https://optimism-goerli.publicnode.com", APIKeyEnv: "OPTIMIZM_API_KEY",
		Explorer: Explorer{APIURL: "https://api-goerli-optimistic.etherscan.io/", BrowserURL: "https://goerli-explorer.optimism.io"},
	},
	{
		Name: "mainnet", ChainID: 1, RPCURL: "https://mainnet.infura.io/v3/${INFURA_KEY}", APIKeyEnv: "ETHERSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api.etherscan.io/api", BrowserURL: "https://etherscan.io"},
	},
	{
		Name: "baseMainnet", ChainID: 8453, RPCURL: "https://mainnet.base.org", APIKeyEnv: "BASESCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api.basescan.org/api", BrowserURL: "https://basescan.org"},
	},
	{
		Name: "baseGoerli", ChainID: 84531, RPCURL: "https://goerli.base.org", GasPrice: gwei, APIKeyEnv: "BASESCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api-goerli.basescan.org/api", BrowserURL: "https://goerli.basescan.org"},
	},
	{
		Name: "lineaTestnet", ChainID: 59140, RPCURL: "https://rpc.goerli.linea.build/", GasPrice: 1000000007, APIKeyEnv: "LINEASCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api-testnet.lineascan.build/api", BrowserURL: "https://goerli.lineascan.build/address"},
	},
	{
		Name: "lineaMainnet", ChainID: 59144, RPCURL: "https://linea-mainnet.infura.io/v3/${INFURA_KEY}", APIKeyEnv: "LINEASCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api.lineascan.build/api", BrowserURL: "https://lineascan.build/"},
	},
	{
		Name: "zoraGoerli", ChainID: 999, RPCURL: "https://testnet.rpc.zora.energy/", GasPrice: 2000000008, APIKeyEnv: "ZORASCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://testnet.explorer.zora.energy/api", BrowserURL: "https://testnet.explorer.zora.energy"},
	},
	{
		Name: "zoraMainnet", ChainID: 7777777, RPCURL: "https://rpc.zora.energy/", APIKeyEnv: "ZORASCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://explorer.zora.energy/api", BrowserURL: "https://explorer.zora.energy"},
	},
	{
		Name: "goerli", ChainID: 5, RPCURL: "https://goerli.infura.io/v3/${INFURA_KEY}", APIKeyEnv: "ETHERSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api-goerli.etherscan.io/api", BrowserURL: "https://goerli.etherscan.io"},
	},
	{
		Name: "polygon", ChainID: 137, RPCURL: "https://polygon-mainnet.infura.io/v3/${INFURA_KEY}", APIKeyEnv: "POLYGONSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api.polygonscan.com/api", BrowserURL: "https://polygonscan.com"},
	},
	{Name: "polygonMumbai", ChainID: 80001, RPCURL: "https://rpc-mumbai.maticvigil.com/", APIKeyEnv: "POLYGONSCAN_API_KEY"},
	{
		Name: "bsc", ChainID: 56, RPCURL: "https://bsc-dataseed.binance.org/", APIKeyEnv: "BSCSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api.bscscan.com/api", BrowserURL: "https://bscscan.com"},
	},
	{Name: "bscTestnet", ChainID: 97, RPCURL: "https://bsc-testnet.public.blastapi.io", APIKeyEnv: "BSCSCAN_API_KEY"},
	{
		Name: "mantaMainnet", ChainID: 169, RPCURL: "https://pacific-rpc.manta.network/http", APIKeyEnv: "MANTASCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://pacific-explorer.manta.network/api", BrowserURL: "https://pacific-explorer.manta.network"},
	},
	{
		Name: "mantaTestnet", ChainID: 3441005, RPCURL: "https://manta-testnet.calderachain.xyz/http", APIKeyEnv: "MANTASCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://pacific-explorer.testnet.manta.network/api", BrowserURL: "https://pacific-explorer.testnet.manta.network"},
	},
	{
		Name: "mantleMainnet", ChainID: 5000, RPCURL: "https://rpc.mantle.xyz", APIKeyEnv: "MANTLESCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api.mantlescan.xyz/api", BrowserURL: "https://api.mantlescan.xyz"},
	},
	{
		Name: "mantleTestnet", ChainID: 5003, RPCURL: "https://rpc.sepolia.mantle.xyz", APIKeyEnv: "MANTLESCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://explorer.sepolia.mantle.xyz/api", BrowserURL: "https://explorer.sepolia.mantle.xyz/"},
	},
	{
		Name: "taikoTestnet", ChainID: 167008, RPCURL: "https://rpc.katla.taiko.xyz", APIKeyEnv: "TAIKOSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://blockscoutapi.katla.taiko.xyz/api", BrowserURL: "https://blockscoutapi.katla.taiko.xyz/"},
	},
	{
		Name: "berachainTestnet", ChainID: 80085, RPCURL: "https://artio.rpc.berachain.com/", APIKeyEnv: "BERACHAINSCAN_API_KEY",
		Explorer: Explorer{APIURL: "https://api.routescan.io/v2/network/testnet/evm/80085/etherscan", BrowserURL: "https://artio.beratrail.io"},
	},
	{
		Name: "morphMainnet", ChainID: 2818, RPCURL: "https://rpc.morphl2.io", GasPrice: 2000000,
		Explorer: Explorer{APIURL: "https://explorer-api.morphl2.io/api?", BrowserURL: "https://explorer.morphl2.io/"},
	},
	{
		Name: "morphDevnet", ChainID: 2819, GasPrice: gwei,
		RPCURL: "https://rpc.vnet.tenderly.co/devnet/morph-deposit/ead38c17-5a1b-4f36-b6dc-b6882775e72a",
	},
	{
		Name: "morphHoleskyDevnet", ChainID: 2810, GasPrice: gwei,
		RPCURL: "https://rpc.vnet.tenderly.co/devnet/morph-holesky-deposit/f448fcf0-802d-423f-9b88-4a73b5ed5e09",
	},
	{
		Name: "morphHolesky", ChainID: 2810, RPCURL: "https://rpc-quicknode-holesky.morphl2.io", GasPrice: gwei,
		Explorer: Explorer{APIURL: "https://explorer-api-holesky.morphl2.io/api?", BrowserURL: "https://explorer-holesky.morphl2.io"},
	},
	{
		Name: "reddioTestnet", ChainID: 50341, RPCURL: "https://reddio-dev.reddio.com/", APIKeyEnv: "REDDIO_API_KEY",
		Explorer: Explorer{APIURL: "https://reddio-devnet.l2scan.co/api", BrowserURL: "https://reddio-devnet.l2scan.co"},
	},
	{
		Name: "soneiumMainnet", ChainID: 1868, RPCURL: "https://soneium.drpc.org",
		Explorer: Explorer{APIURL: "https://soneium.blockscout.com/api", BrowserURL: "https://soneium.blockscout.com"},
	},
	{
		Name: "soneiumTestnet", ChainID: 1946, RPCURL: "https://rpc.minato.soneium.org",
		Explorer: Explorer{APIURL: "https://soneium-minato.blockscout.com/api", BrowserURL: "https://soneium-minato.blockscout.com"},
	},
	{
		Name: "monadTestnet", ChainID: 10143, RPCURL: "https://testnet-rpc.monad.xyz",
		Explorer: Explorer{APIURL: "https://sourcify-api-monad.blockvision.org", BrowserURL: "https://testnet.monadexplorer.com"},
	},
	{
		Name: "somniaTestnet", ChainID: 50312,
		RPCURL:   "https://rpc.ankr.com/somnia_testnet/6e3fd81558cf77b928b06b38e9409b4677b637118114e83364486294d5ff4811",
		Explorer: Explorer{APIURL: "https://somnia-poc.w3us.site/api", BrowserURL: "https://somnia-poc.w3us.site"},
	},
	{
		Name: "megaEthTestnet", ChainID: 6342, RPCURL: "https://carrot.megaeth.com/rpc",
		Explorer: Explorer{BrowserURL: "https://megaexplorer.xyz"},
	},
	{
		Name: "riseTestnet", ChainID: 11155931, RPCURL: "https://testnet.riselabs.xyz/",
		Explorer: Explorer{APIURL: "https://explorer.testnet.riselabs.xyz/api", BrowserURL: "https://explorer.testnet.riselabs.xyz/"},
	},
	{
		Name: "bobaEthMainnet", ChainID: 288, RPCURL: "https://mainnet.boba.network",
		Explorer: Explorer{APIURL: "https://api.routescan.io/v2/network/mainnet/evm/288/etherscan", BrowserURL: "https://bobascan.com"},
	},
}
