package model

import (
	"time"
)

// TimeRange bounds list queries; a zero bound is open.
type TimeRange struct {
	From time.Time `json:"from" form:"from"`
	To   time.Time `json:"to" form:"to"`
}
