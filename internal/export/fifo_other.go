//go:build !unix

package export

import (
	"errors"
	"os"
)

func openFifo(string) (*os.File, error) {
	return nil, errors.New("named pipes are not supported on this platform")
}
