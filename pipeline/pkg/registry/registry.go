package registry

import (
	"context"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
)

// StatusActive is the status given to devices registered from telemetry.
const StatusActive = "Active"

// Device is one row of the master device registry.
type Device struct {
	ID     string
	Type   string
	Status string
}

// Registry resolves device metadata by id.
type Registry interface {
	Lookup(ctx context.Context, deviceID string) (Device, bool, error)
}

// DevicesFromDataset returns one active device of the given type per distinct device id in the
// dataset, in order of first appearance. Rows without a textual device id are skipped.
func DevicesFromDataset(ds record.Dataset, deviceType string) []Device {
	var (
		devices []Device
		seen    = make(map[string]struct{})
	)
	for _, r := range ds.Records() {
		id, ok := r.Get(record.DeviceIDColumn).Str()
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		devices = append(devices, Device{ID: id, Type: deviceType, Status: StatusActive})
	}
	return devices
}
