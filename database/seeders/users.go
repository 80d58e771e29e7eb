package seeders

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/pkg/auth"
)

func init() {
	Register("demo_user", seedDemoUser)
}

// DemoUserID derives a stable id from the email so reseeding keeps issued
// tokens valid.
func DemoUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}

func seedDemoUser(ctx context.Context, users UserWriter, out io.Writer) error {
	email := config.Get("SEED_USER_EMAIL", "demo@checkout.local")
	password := config.Get("SEED_USER_PASSWORD", "password")

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:       DemoUserID(email),
		Name:     "Demo Customer",
		Email:    email,
		Password: hash,
	}
	if err := users.Upsert(ctx, user); err != nil {
		return err
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintf(out, "\n    user  %s (%s)\n    token %s\n  ", user.Email, user.ID, token)
	return nil
}
