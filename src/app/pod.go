package app

import (
	"crypto/md5"
	"math/big"
	"os"
)

var accentColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
	"#F8C471", "#82E0AA",
}

// PodInfo identifies the replica serving a request.
type PodInfo struct {
	Hostname string `json:"hostname"`
	Color    string `json:"color"`
}

func CurrentPod() PodInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return PodInfoFor(hostname)
}

// PodInfoFor derives a stable accent colour from the md5 of the hostname.
func PodInfoFor(hostname string) PodInfo {
	sum := md5.Sum([]byte(hostname))
	n := new(big.Int).SetBytes(sum[:])
	idx := new(big.Int).Mod(n, big.NewInt(int64(len(accentColors)))).Int64()
	return PodInfo{Hostname: hostname, Color: accentColors[idx]}
}
