package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"certledger/internal/platform/config"
	"certledger/internal/wallettoken"
)

// main mints a wallet session token for the given address, signed with the
// same key the server validates against (JWT_SIGNING_KEY, falling back to
// the shared development default). This is how operators and local clients
// obtain credentials for the mutating registry routes.
func main() {
	wallet := flag.String("wallet", "", "wallet address to mint a session token for")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if !common.IsHexAddress(*wallet) {
		fmt.Fprintln(os.Stderr, "usage: tokengen -wallet 0x... [-ttl 1h]")
		os.Exit(2)
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		signingKey = config.DefaultJWTSigningKey
	}

	svc := wallettoken.NewService(signingKey, "certledger", "certledger")
	token, err := svc.Generate(common.HexToAddress(*wallet), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to generate token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
