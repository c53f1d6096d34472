// README: Common value objects shared across modules.
package types

type ID string

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
