// Command devtoken prints a signed access token for local testing.
//
//	devtoken -member 42 -role MEMBER -ttl 2h
//
// The signing secret is read from JWT_SECRET, through .env when present.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/utils"
)

func main() {
	member := flag.Uint64("member", 1, "member id carried in the subject claim")
	role := flag.String("role", utils.RoleMember, "MEMBER or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(2)
	}
	if *role != utils.RoleMember && *role != utils.RoleAdmin {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(secret, *member, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
