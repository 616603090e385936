package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"private-lending/internal/handlers"
)

func main() {
	secret := flag.String("secret", "", "JWT secret (auth.jwt_secret)")
	address := flag.String("address", "0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "user address")
	role := flag.String("role", handlers.RoleUser, "user or admin")
	issuer := flag.String("issuer", "private-lending-ingress", "token issuer, private-lending-<node role>")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	tokens, err := handlers.NewTokenIssuer(*secret, *ttl, *issuer)
	if err != nil {
		log.Fatalf("Error creating token issuer: %v", err)
	}
	tokenString, err := tokens.Issue(*address, *role)
	if err != nil {
		log.Fatalf("Error generating token: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Println("JWT Token Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Println("Claims:")
	fmt.Printf("  User Address: %s\n", *address)
	fmt.Printf("  Role: %s\n", *role)
	fmt.Printf("  Expires: %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:3001/api/deposits\n", tokenString)
}
