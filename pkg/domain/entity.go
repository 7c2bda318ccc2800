package domain

import "time"

// Entity is a business record held by the durable store on behalf of one
// owner subject. The engine treats Data as opaque; only identity, ownership
// and timestamps are interpreted here.
type Entity struct {
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
