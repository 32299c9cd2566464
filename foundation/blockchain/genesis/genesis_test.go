package genesis_test

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/ledgerlab/blockchain/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Load(t *testing.T) {
	t.Log("Given the need to load the genesis values.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen loading the shipped genesis file.", testID)
		{
			gen, err := genesis.Load("../../../zblock/genesis.json")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the file: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to load the file.", success, testID)

			if !gen.Date.Equal(genesis.Default().Date) {
				t.Fatalf("\t%s\tTest %d:\tShould match the default date: %v", failed, testID, gen.Date)
			}

			def := genesis.Default()
			gen.Date = def.Date
			if gen != def {
				t.Logf("\t%s\tTest %d:\tgot: %+v", failed, testID, gen)
				t.Logf("\t%s\tTest %d:\texp: %+v", failed, testID, def)
				t.Fatalf("\t%s\tTest %d:\tShould match the default values.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould match the default values.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the genesis file is missing.", testID)
		{
			_, err := genesis.Load(filepath.Join(t.TempDir(), "genesis.json"))
			if !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("\t%s\tTest %d:\tShould report the file as missing: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the file as missing.", success, testID)
		}
	}
}
