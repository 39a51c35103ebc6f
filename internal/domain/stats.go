package domain

type AlertStats struct {
	Minutes  int                   `json:"minutes"`
	Total    int64                 `json:"total"`
	ByStatus map[AlertStatus]int64 `json:"by_status"`
}

type StatsRequest struct {
	Minutes int `query:"minutes" validate:"min=1,max=1440"` // 1 day max
}
