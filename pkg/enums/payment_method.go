package enums

// PaymentMethod captures how the buyer intends to pay.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodWallet         PaymentMethod = "wallet"
)

var paymentMethods = newSet("payment method",
	PaymentMethodCard,
	PaymentMethodCashOnDelivery,
	PaymentMethodBankTransfer,
	PaymentMethodWallet,
)

func (v PaymentMethod) String() string { return string(v) }

func (v PaymentMethod) IsValid() bool { return paymentMethods.has(v) }

func ParsePaymentMethod(value string) (PaymentMethod, error) { return paymentMethods.parse(value) }
