package processors

import (
	"os"
	"testing"

	"github.com/username/fimaledger/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}
