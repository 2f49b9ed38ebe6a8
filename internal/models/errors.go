package models

import "errors"

var ErrEmptyTrack = errors.New("track has neither an internal nor an external id")
