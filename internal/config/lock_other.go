//go:build !unix

package config

import "sync"

var configMu sync.Mutex

// withConfigLock serializes config updates within this process only.
func withConfigLock(_ string, fn func() error) error {
	configMu.Lock()
	defer configMu.Unlock()
	return fn()
}
