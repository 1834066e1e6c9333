package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/offline"
	"github.com/marcus/agriscan/internal/output"
	"github.com/marcus/agriscan/internal/refdata"
	"github.com/marcus/agriscan/internal/syncclient"
)

// errNotFound marks lookups that found nothing
var errNotFound = errors.New("not found")

// errorCode maps an error to the stable code used in JSON output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errNotFound):
		return output.ErrCodeNotFound
	case errors.Is(err, db.ErrQuotaExceeded):
		return output.ErrCodeQuotaExceeded
	case errors.Is(err, db.ErrStorageUnavailable), errors.Is(err, offline.ErrStorageDisabled):
		return output.ErrCodeStorageUnavailable
	case errors.Is(err, db.ErrTransactionAborted):
		return output.ErrCodeTransactionAborted
	case errors.Is(err, db.ErrInvalidDisease), errors.Is(err, db.ErrUnknownCollection),
		errors.Is(err, refdata.ErrUnsupportedFormat), errors.Is(err, errInvalidInput):
		return output.ErrCodeInvalidInput
	case errors.Is(err, syncclient.ErrUnauthorized), errors.Is(err, syncclient.ErrForbidden),
		errors.Is(err, syncclient.ErrNotFound):
		return output.ErrCodeSyncError
	default:
		return output.ErrCodeDatabaseError
	}
}

// errInvalidInput marks bad arguments or flag values
var errInvalidInput = errors.New("invalid input")

// fail reports err in the requested format and returns it so cobra exits
// non-zero.
func fail(cmd *cobra.Command, err error) error {
	if jsonOutput(cmd) {
		output.JSONError(errorCode(err), err.Error())
	} else {
		output.Error("%v", err)
	}
	return err
}
