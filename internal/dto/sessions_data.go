// SessionsData is a paginated response payload for the session list.
package dto

type SessionsData struct {
	Sessions    []SessionSummary `json:"sessions"`
	Length      int              `json:"length"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Limit       int              `json:"pageSize"`
}
