package types

import "fmt"

type Cluster string

const (
	ClusterMainnetBeta Cluster = "mainnet-beta"
	ClusterDevnet      Cluster = "devnet"
	ClusterLocalnet    Cluster = "localnet"
	ClusterCustom      Cluster = "custom"
)

func (c Cluster) String() string {
	return string(c)
}

func (c Cluster) Valid() bool {
	switch c {
	case ClusterMainnetBeta, ClusterDevnet, ClusterLocalnet, ClusterCustom:
		return true
	default:
		return false
	}
}

// AirdropAllowed reports whether the cluster hands out test SOL.
func (c Cluster) AirdropAllowed() bool {
	return c == ClusterDevnet || c == ClusterLocalnet
}

func ParseCluster(s string) (Cluster, error) {
	c := Cluster(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown cluster: %q", s)
	}
	return c, nil
}
