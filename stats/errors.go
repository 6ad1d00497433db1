package stats

import "errors"

// ErrNoProofRecorded is returned when execution did not honor proof
// recording, leaving no witness to measure.
var ErrNoProofRecorded = errors.New("stats: no proof was recorded")
