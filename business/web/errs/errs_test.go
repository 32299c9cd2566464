package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ledgerlab/blockchain/business/web/errs"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/mempool"
	"github.com/ledgerlab/blockchain/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_FromLedger(t *testing.T) {
	type table struct {
		name   string
		err    error
		status int
	}

	tt := []table{
		{name: "duplicate", err: mempool.ErrDuplicate, status: http.StatusConflict},
		{name: "confirmed", err: fmt.Errorf("tx: %w", state.ErrAlreadyConfirmed), status: http.StatusConflict},
		{name: "known", err: state.ErrBlockKnown, status: http.StatusConflict},
		{name: "staletip", err: database.ErrStaleTip, status: http.StatusConflict},
		{name: "reconciling", err: state.ErrReconciling, status: http.StatusConflict},
		{name: "empty", err: state.ErrNoTransactions, status: http.StatusUnprocessableEntity},
		{name: "ahead", err: state.ErrPeerAhead, status: http.StatusNotAcceptable},
		{name: "signature", err: database.ErrInvalidSignature, status: http.StatusBadRequest},
		{name: "notfound", err: database.ErrNotFound, status: http.StatusNotFound},
	}

	t.Log("Given the need to map ledger errors to http status codes.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a %s error.", testID, tst.name)
				{
					trusted := errs.GetTrusted(errs.FromLedger(tst.err))
					if trusted == nil {
						t.Fatalf("\t%s\tTest %d:\tShould be a trusted error.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be a trusted error.", success, testID)

					if trusted.Status != tst.status {
						t.Fatalf("\t%s\tTest %d:\tShould map to status %d: got %d", failed, testID, tst.status, trusted.Status)
					}
					t.Logf("\t%s\tTest %d:\tShould map to status %d.", success, testID, tst.status)
				}
			}

			t.Run(tst.name, f)
		}

		testID := len(tt)
		t.Logf("\tTest %d:\tWhen handling an unknown error.", testID)
		{
			err := errors.New("disk full")
			if errs.IsTrusted(errs.FromLedger(err)) {
				t.Fatalf("\t%s\tTest %d:\tShould leave the error untouched.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the error untouched.", success, testID)
		}
	}
}
