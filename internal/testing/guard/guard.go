package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("KITCHEN_TEST_MODE") == "" {
			_ = os.Setenv("KITCHEN_TEST_MODE", "1")
		}
	})
}
