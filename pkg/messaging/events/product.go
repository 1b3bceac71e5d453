package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/productroom/pkg/messaging"
)

type ProductAddedEvent struct {
	ID          int64     `json:"id"`
	ProductName string    `json:"product_name"`
	Quantity    int32     `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p ProductAddedEvent) Subject() string {
	return messaging.ProductsAddedSubject
}

func (p ProductAddedEvent) Payload() ([]byte, error) {
	return json.Marshal(p)
}

type ProductsDeletedEvent struct {
	ProductName string    `json:"product_name"`
	Count       int64     `json:"count"`
	DeletedAt   time.Time `json:"deleted_at"`
}

func (p ProductsDeletedEvent) Subject() string {
	return messaging.ProductsDeletedSubject
}

func (p ProductsDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(p)
}
