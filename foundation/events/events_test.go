package events_test

import (
	"testing"

	"github.com/ledgerlab/blockchain/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to stream ledger events to receivers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen sending viewer and internal events.", testID)
		{
			evts := events.New()

			ch := evts.Acquire("a")
			if evts.Count() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have one receiver: got %d", failed, testID, evts.Count())
			}
			t.Logf("\t%s\tTest %d:\tShould have one receiver.", success, testID)

			evts.Send("state: Reconcile: started")
			evts.Send(`viewer: block: {"index":1}`)

			if msg := <-ch; msg != `block: {"index":1}` {
				t.Fatalf("\t%s\tTest %d:\tShould receive only the viewer event: got %q", failed, testID, msg)
			}
			t.Logf("\t%s\tTest %d:\tShould receive only the viewer event.", success, testID)

			if err := evts.Release("a"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to release the receiver: %v", failed, testID, err)
			}
			if _, open := <-ch; open {
				t.Fatalf("\t%s\tTest %d:\tShould close the channel on release.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close the channel on release.", success, testID)

			if err := evts.Release("a"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to release an unknown id.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to release an unknown id.", success, testID)
		}
	}
}
