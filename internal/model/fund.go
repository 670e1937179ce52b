package model

// Fund is an investable product from the catalog. Immutable reference data.
type Fund struct {
	FundID    string `json:"fund_id"`
	Name      string `json:"name"`
	MinAmount int64  `json:"min_amount"`
	Category  string `json:"category"`
}
