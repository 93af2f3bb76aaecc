// Command issue-token prints an owner bearer token for local development and scripts.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"quoteflow/config"
	"quoteflow/internal/adapters/auth"
)

func main() {
	accountID := flag.String("account", "", "account ID to put in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *accountID == "" {
		log.Fatal("-account is required")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(*accountID, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
