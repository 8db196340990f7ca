package solana

import "strings"

type Environment string

const (
	EnvironmentLocal Environment = "http://127.0.0.1:8899"
	EnvironmentDev   Environment = "https://api.devnet.solana.com"
	EnvironmentTest  Environment = "https://api.testnet.solana.com"
	EnvironmentProd  Environment = "https://api.mainnet-beta.solana.com"
)

// Endpoint resolves a cluster moniker (local, devnet, testnet, mainnet) to
// its public RPC endpoint. Anything else is assumed to already be a URL.
func Endpoint(cluster string) string {
	switch strings.ToLower(cluster) {
	case "local", "localnet":
		return string(EnvironmentLocal)
	case "dev", "devnet":
		return string(EnvironmentDev)
	case "test", "testnet":
		return string(EnvironmentTest)
	case "prod", "mainnet", "mainnet-beta":
		return string(EnvironmentProd)
	}
	return cluster
}
