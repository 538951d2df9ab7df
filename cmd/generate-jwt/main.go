package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/handlers"
)

func main() {
	account := flag.String("account", "alice", "account id the token authenticates")
	issuer := flag.String("issuer", "nft-bridge", "token issuer")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Println("JWT_SECRET is required")
		os.Exit(1)
	}

	tokenString, err := handlers.GenerateCallerToken([]byte(secret), *issuer, *account, *ttl)
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("Caller JWT Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("  Account: %s\n", *account)
	fmt.Printf("  Expires: %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/...\n", tokenString)
}
