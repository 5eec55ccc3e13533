package repository

import "context"

// SettingsRepository reads operator-tunable configuration. Values are read
// fresh on every admission cycle; implementations must not cache.
type SettingsRepository interface {
	Get(ctx context.Context, tx Tx, key string) (string, error)
	Set(ctx context.Context, tx Tx, key, value string) error
}
