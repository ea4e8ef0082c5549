// SessionFilter narrows and pages the session list.
package dto

import "time"

type SessionFilter struct {
	UpdatedAfter  time.Time
	UpdatedBefore time.Time
	Limit         int
	Offset        int
}
