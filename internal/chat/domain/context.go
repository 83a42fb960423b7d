package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================
// Conversation contexts
// ============================================================

// ContextName is the suffix tag of a context, after "<session>/contexts/".
type ContextName string

const (
	CtxProductList       ContextName = "product_list_context"
	CtxFilteredProducts  ContextName = "filtered_products_context"
	CtxSelectedProduct   ContextName = "selected_product_context"
	CtxProductSize       ContextName = "product_size_context"
	CtxProductColor      ContextName = "product_color_context"
	CtxProductQuantity   ContextName = "product_quantity_context"
	CtxDeliveryInfo      ContextName = "delivery_info_context"
	CtxOrderConfirmation ContextName = "order_confirmation_context"
	CtxWaitingForEmail   ContextName = "waiting_for_email_context"
)

// Parameter keys used inside the contexts above.
const (
	ParamProducts         = "products"
	ParamSearchCriteria   = "searchCriteria"
	ParamFilteredProducts = "filteredProducts"
	ParamSelectedProduct  = "selectedProduct"
	ParamSelectedSize     = "selectedSize"
	ParamSelectedColor    = "selectedColor"
	ParamSelectedQuantity = "selectedQuantity"
	ParamOrder            = "order"
	ParamIncomplete       = "incomplete"
	ParamOrderID          = "orderId"
)

// DefaultLifespan is the number of turns an emitted context survives.
const DefaultLifespan = 5

// Context is a named, lifespan-counted bag of parameters.
type Context struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// Tag returns the suffix tag of the context name.
func (c Context) Tag() ContextName {
	if i := strings.LastIndex(c.Name, "/contexts/"); i >= 0 {
		return ContextName(c.Name[i+len("/contexts/"):])
	}
	return ContextName(c.Name)
}

// Has reports whether the parameter is present and not null.
func (c Context) Has(key string) bool {
	v, ok := c.Parameters[key]
	return ok && v != nil
}

// NewContext builds "<session>/contexts/<name>" with the default lifespan.
func NewContext(session string, name ContextName, params map[string]any) Context {
	return Context{
		Name:          ContextPath(session, name),
		LifespanCount: DefaultLifespan,
		Parameters:    params,
	}
}

// ExpireContext builds a lifespan-0 context, which tells the platform to
// drop it immediately.
func ExpireContext(session string, name ContextName) Context {
	return Context{Name: ContextPath(session, name), LifespanCount: 0}
}

// ContextPath joins a session id and a context tag.
func ContextPath(session string, name ContextName) string {
	return strings.TrimSuffix(session, "/") + "/contexts/" + string(name)
}

// ContextSet is the list of live contexts sent with a request.
type ContextSet []Context

// Find returns the context with the given tag. The platform only sends
// live contexts, so lifespan is not checked here.
func (cs ContextSet) Find(name ContextName) (Context, bool) {
	for _, c := range cs {
		if c.Tag() == name {
			return c, true
		}
	}
	return Context{}, false
}

// Decode converts the parameter key of the named context into T by a JSON
// round trip. It reports false when the context or the key is missing.
func Decode[T any](cs ContextSet, name ContextName, key string) (T, bool, error) {
	var out T
	c, ok := cs.Find(name)
	if !ok || !c.Has(key) {
		return out, false, nil
	}
	if err := DecodeValue(c.Parameters[key], &out); err != nil {
		return out, false, fmt.Errorf("decode %s.%s: %w", name, key, err)
	}
	return out, true, nil
}

// DecodeValue converts a loosely typed JSON value into out.
func DecodeValue(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
