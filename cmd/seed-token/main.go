// Command seed-token mints a signed user token for calling the checkout API
// locally.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/booklify-checkout/internal/domain/auth"
)

func main() {
	var (
		userID int64
		name   string
		email  string
		secret string
		issuer string
		ttl    time.Duration
	)

	flag.Int64Var(&userID, "user-id", 0, "bookstore user id (token subject)")
	flag.StringVar(&name, "name", "", "customer full name printed on invoices")
	flag.StringVar(&email, "email", "", "customer email printed on invoices")
	flag.StringVar(&secret, "secret", "", "HS256 secret (or BOOKLIFY_AUTH_TOKEN_SECRET env)")
	flag.StringVar(&issuer, "issuer", "booklify", "token issuer")
	flag.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if secret == "" {
		secret = os.Getenv("BOOKLIFY_AUTH_TOKEN_SECRET")
	}

	token, err := mint(userID, name, email, secret, issuer, ttl)
	if err != nil {
		lg.Fatal("Mint token", zap.Error(err))
	}
	lg.Info("Token minted",
		zap.Int64("user_id", userID),
		zap.Duration("ttl", ttl),
	)
	fmt.Println(token)
}

func mint(userID int64, name, email, secret, issuer string, ttl time.Duration) (string, error) {
	if userID <= 0 {
		return "", errors.New("user id is required: set --user-id")
	}
	tokens, err := auth.NewTokenManager(secret, issuer, ttl)
	if err != nil {
		return "", errors.Wrap(err, "set --secret or BOOKLIFY_AUTH_TOKEN_SECRET")
	}
	return tokens.Issue(userID, name, email)
}
