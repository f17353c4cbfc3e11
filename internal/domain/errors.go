package domain

import "errors"

var (
	ErrRigNotFound           = errors.New("rig not found")
	ErrSnapshotNotFound      = errors.New("snapshot not found")
	ErrUnknownAction         = errors.New("unknown action")
	ErrAutomationUnavailable = errors.New("automation is not available")
)
