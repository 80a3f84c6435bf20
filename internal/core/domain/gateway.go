package domain

type GatewayOrderStatus string

const (
	GatewayOrderCreated   GatewayOrderStatus = "created"
	GatewayOrderAttempted GatewayOrderStatus = "attempted"
	GatewayOrderPaid      GatewayOrderStatus = "paid"
)

// GatewayOrder é a visão autoritativa do pedido mantida pelo gateway.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Status   GatewayOrderStatus
}

// Matches compara valor e moeda exatamente; a moeda diferencia maiúsculas.
func (o GatewayOrder) Matches(tx Transaction) bool {
	return o.Amount == tx.Amount && o.Currency == tx.Currency
}
