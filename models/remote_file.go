// models/remote_file.go
package models

import "time"

// RemoteFile identifies one published GDELT artifact held locally. Immutable
// once created: raw instances come from the acquisition manager on a
// successful fetch, clean instances from the normalization pipeline.
type RemoteFile struct {
	Table     Table
	Timestamp time.Time
	Tier      Tier
	Name      string
}
