package utils

import (
	"fmt"
	"os"
	"sync"

	"github.com/denisbrodbeck/machineid"
)

var (
	instanceOnce sync.Once
	instanceID   string
)

// InstanceID identifies this process for records written to shared state.
// It combines an app-scoped machine id with the pid, so two processes on one
// host get different ids.
func InstanceID() string {
	instanceOnce.Do(func() {
		host, err := machineid.ProtectedID("foldernotify")
		if err != nil || host == "" {
			host, _ = os.Hostname()
		}
		if len(host) > 12 {
			host = host[:12]
		}
		instanceID = fmt.Sprintf("%s-%d", host, os.Getpid())
	})
	return instanceID
}
