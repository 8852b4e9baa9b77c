package storefront

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RemoteLine is a line as served by the collection API.
type RemoteLine struct {
	ProductID string           `json:"productId"`
	Size      string           `json:"size,omitempty"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Product   *RemoteProduct   `json:"product,omitempty"`
}

// RemoteProduct is the product fragment embedded in remote lines.
type RemoteProduct struct {
	ID    string          `json:"_id"`
	Name  string          `json:"name"`
	Image string          `json:"image,omitempty"`
	Price decimal.Decimal `json:"price"`
}

// CollectionResponse is the payload of GET /cart and GET /wishlist.
type CollectionResponse struct {
	Items       []RemoteLine    `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// AddRequest is the body of POST /cart and POST /wishlist.
type AddRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
}

// UpdateRequest is the body of PUT /cart/:productId.
type UpdateRequest struct {
	Size     string `json:"size,omitempty"`
	Quantity int    `json:"quantity"`
}

// AddResponse is either the updated line or a collection fragment.
type AddResponse struct {
	Item  *RemoteLine  `json:"item,omitempty"`
	Items []RemoteLine `json:"items,omitempty"`

	// Flat form: the line itself at the top level.
	ProductID string `json:"productId,omitempty"`
	Size      string `json:"size,omitempty"`
	Quantity  *int   `json:"quantity,omitempty"`
}

// QuantityFor returns the authoritative quantity the server reports for the
// given line, if the response carries one.
func (r *AddResponse) QuantityFor(productID, size string) (int, bool) {
	if r == nil {
		return 0, false
	}
	if r.Item != nil && r.Item.ProductID == productID && r.Item.Size == size {
		return r.Item.Quantity, true
	}
	for _, it := range r.Items {
		if it.ProductID == productID && it.Size == size {
			return it.Quantity, true
		}
	}
	if r.Quantity != nil && r.ProductID == productID && r.Size == size {
		return *r.Quantity, true
	}
	return 0, false
}

// errorBody is the error payload shape of the collection API.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error,omitempty"`
}
