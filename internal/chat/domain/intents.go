package domain

// Intent display names configured on the NLU agent.
const (
	IntentWelcome               = "Default Welcome Intent"
	IntentConsult               = "product_consulting"
	IntentSearchByCategory      = "product_by_category"
	IntentSearchByPrice         = "product_by_price"
	IntentSearchByBrand         = "product_by_brand"
	IntentSelectProduct         = "select_product"
	IntentSelectFilteredProduct = "select_filtered_product"
	IntentChooseSize            = "select_product_size"
	IntentChooseColor           = "select_product_color"
	IntentChooseQuantity        = "select_product_quantity"
	IntentCollectDeliveryInfo   = "collect_delivery_information"
	IntentChoosePaymentMethod   = "select_payment_method"
	IntentConfirmOrder          = "confirm_order"
	IntentProvideLateEmail      = "provide_late_email"
)

// Slot names extracted by the NLU agent.
const (
	SlotCategory        = "category"
	SlotPrice           = "price"
	SlotDiscount        = "discount"
	SlotBrand           = "brand"
	SlotPurpose         = "purpose"
	SlotNumber          = "number"
	SlotPriceRange      = "price_range"
	SlotUnit            = "unit"
	SlotProductName     = "product_name"
	SlotProductNumber   = "product_number"
	SlotSize            = "size"
	SlotColor           = "color"
	SlotQuantity        = "quantity"
	SlotShippingAddress = "shippingAddress"
	SlotPhone           = "phone"
	SlotEmail           = "email"
	SlotRecipientName   = "recipientName"
	SlotPaymentMethod   = "payment_method"
	SlotConfirmEmail    = "confirm_email"
)
