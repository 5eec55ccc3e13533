package repository

import "context"

// IdempotencyRepository is the claim set behind admission dedup. Presence of a
// key means "an admitted attempt is in flight or succeeded".
type IdempotencyRepository interface {
	// Insert claims the key. Returns domain.ErrAlreadyExists when another
	// cycle holds the claim (the unique constraint is the only cross-process
	// coordination primitive).
	Insert(ctx context.Context, tx Tx, key string) error

	Exists(ctx context.Context, tx Tx, key string) (bool, error)

	// Delete releases a stale claim so a candidate whose last job failed can
	// be re-admitted.
	Delete(ctx context.Context, tx Tx, key string) error
}
