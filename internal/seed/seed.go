package seed

import (
	"context"
	"fmt"

	"github.com/zeqswap/exchange/internal/db"
	"github.com/zeqswap/exchange/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// EnsureDeployer creates the deployer user if it does not exist yet. The
// deployer owns the minted token supply and is how seed scripts distribute
// funds to traders.
func EnsureDeployer(ctx context.Context, database *db.DB, address models.Address, password string) error {
	if _, err := database.GetUserByUsername(ctx, "deployer"); err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash deployer password: %w", err)
	}
	if _, err := database.CreateUser(ctx, "deployer", string(hash), address); err != nil {
		return fmt.Errorf("failed to create deployer user: %w", err)
	}
	return nil
}
