package db

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Supported drivers. The pure-Go driver is the default so the binary
// builds without cgo; the cgo driver is available for hosts that prefer it.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// Drivers lists the accepted driver names.
var Drivers = []string{DriverModernc, DriverCGO}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case "", DriverModernc:
		return DriverModernc, nil
	case DriverCGO:
		return DriverCGO, nil
	default:
		return "", fmt.Errorf("unsupported driver %q (want %q or %q)", driver, DriverModernc, DriverCGO)
	}
}

// isStorageFull reports whether err is SQLITE_FULL from either driver.
func isStorageFull(err error) bool {
	var modErr *sqlite.Error
	if errors.As(err, &modErr) {
		return modErr.Code()&0xff == sqlite3lib.SQLITE_FULL
	}
	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) {
		return cgoErr.Code == sqlite3.ErrFull
	}
	return false
}
