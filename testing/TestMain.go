package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/lodestar-erp/lodestar-erp/internal/app"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("LODESTAR_TEST_MODE", "1")
		// The flag is cached on first read; refresh in case anything read it
		// before this package's init ran.
		app.RefreshTestMode()
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
