package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoint(t *testing.T) {
	assert.Equal(t, string(EnvironmentDev), Endpoint("devnet"))
	assert.Equal(t, string(EnvironmentProd), Endpoint("Mainnet-Beta"))
	assert.Equal(t, string(EnvironmentLocal), Endpoint("local"))
	assert.Equal(t, "https://rpc.example.com", Endpoint("https://rpc.example.com"))
}
