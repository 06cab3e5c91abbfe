//go:build !windows && (!unix || aix || solaris || illumos)

package platform

import (
	"fmt"
	"runtime"
)

func acquirePortLock(_, _ string) (PortLock, error) {
	return nil, fmt.Errorf("%w on %s", ErrPortLockUnsupported, runtime.GOOS)
}
