// Command token issues a bearer token for a roomwatt actor.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/identity"
	"go.uber.org/zap"
)

func main() {
	sub := flag.String("sub", "", "actor id (user id or device id)")
	role := flag.String("role", string(identity.RoleOwner), "owner, tenant, device or system")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync()

	parsedRole, err := identity.ParseRole(*role)
	if err != nil {
		log.Fatal("invalid role", zap.String("role", *role), zap.Error(err))
	}

	issuer, err := identity.NewIssuer(identity.TokenConfigFrom(config.Load()), clock.New())
	if err != nil {
		log.Fatal("token issuer unavailable", zap.Error(err))
	}

	token, err := issuer.Issue(identity.Actor{ID: *sub, Role: parsedRole}, *ttl)
	if err != nil {
		log.Fatal("issue token", zap.Error(err))
	}
	fmt.Fprintln(os.Stdout, token)
}
