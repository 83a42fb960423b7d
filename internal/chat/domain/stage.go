package domain

// Stage is how far a conversation has progressed, derived from the live
// contexts of the current request.
type Stage int

const (
	StageStart Stage = iota
	StageProductSearch
	StageProductSelected
	StageSizeChosen
	StageColorChosen
	StageQuantityChosen
	StageDeliveryInfoCollected
	StageOrderCreated
	StageAwaitingLateEmail
)

var stageNames = map[Stage]string{
	StageStart:                 "start",
	StageProductSearch:         "product_search",
	StageProductSelected:       "product_selected",
	StageSizeChosen:            "size_chosen",
	StageColorChosen:           "color_chosen",
	StageQuantityChosen:        "quantity_chosen",
	StageDeliveryInfoCollected: "delivery_info_collected",
	StageOrderCreated:          "order_created",
	StageAwaitingLateEmail:     "awaiting_late_email",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

var stageByContext = map[ContextName]Stage{
	CtxProductList:       StageProductSearch,
	CtxFilteredProducts:  StageProductSearch,
	CtxSelectedProduct:   StageProductSelected,
	CtxProductSize:       StageSizeChosen,
	CtxProductColor:      StageColorChosen,
	CtxProductQuantity:   StageQuantityChosen,
	CtxDeliveryInfo:      StageDeliveryInfoCollected,
	CtxOrderConfirmation: StageOrderCreated,
	CtxWaitingForEmail:   StageAwaitingLateEmail,
}

// StageOf returns the stage a context marks as reached.
func StageOf(name ContextName) Stage {
	return stageByContext[name]
}

// Stage reports the furthest stage marked by any live context.
func (cs ContextSet) Stage() Stage {
	furthest := StageStart
	for _, c := range cs {
		if s, ok := stageByContext[c.Tag()]; ok && s > furthest {
			furthest = s
		}
	}
	return furthest
}
