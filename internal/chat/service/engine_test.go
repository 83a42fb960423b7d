package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/chat/phrases"
	"github.com/boddenberg/shoeshop-bot-go/internal/chat/replay"
	"github.com/boddenberg/shoeshop-bot-go/internal/chat/service"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/memory"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/observability"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/session"
	"github.com/boddenberg/shoeshop-bot-go/internal/port"
	"github.com/boddenberg/shoeshop-bot-go/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	testSession = "projects/shoeshop/agent/sessions/test-1"
	support     = "0382385129"
)

// --- Fakes ---

type sentInvoice struct {
	to    string
	order domain.Order
}

type recordingInvoices struct {
	mu   sync.Mutex
	sent []sentInvoice
	err  error
}

func (r *recordingInvoices) SendInvoice(_ context.Context, to string, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentInvoice{to: to, order: *order})
	return nil
}

func (r *recordingInvoices) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type failingCatalog struct {
	port.CatalogStore
	err error
}

func (f *failingCatalog) FindProducts(context.Context, domain.ProductFilter) ([]domain.Product, error) {
	return nil, f.err
}

// --- Fixture ---

type fixture struct {
	engine   *service.Engine
	catalog  *memory.CatalogStore
	orders   *memory.OrderStore
	sessions *session.MemoryStore
	invoices *recordingInvoices
	metrics  *observability.Metrics
	jar      *replay.Jar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	categories, products := memory.DemoCatalog()
	catalog := memory.NewCatalogStore(categories, products)
	sessions := session.NewMemoryStore(time.Minute)
	t.Cleanup(sessions.Close)

	f := &fixture{
		catalog:  catalog,
		orders:   memory.NewOrderStore(catalog),
		sessions: sessions,
		invoices: &recordingInvoices{},
		metrics:  observability.NewMetrics(),
		jar:      replay.NewJar(testSession),
	}
	f.engine = f.newEngine(catalog)
	return f
}

func (f *fixture) newEngine(catalog port.CatalogStore) *service.Engine {
	return service.NewEngine(catalog, f.orders, f.sessions, f.invoices, phrases.Default(), f.metrics, zap.NewNop(),
		service.Options{UserID: "user-1", SupportContact: support})
}

// say runs one turn and lets the jar age and store the contexts, as the
// platform would.
func (f *fixture) say(t *testing.T, intent, text string, params chatdomain.Params) *chatdomain.WebhookResponse {
	t.Helper()
	resp := f.engine.Handle(context.Background(), f.jar.Request(intent, text, params))
	require.NotNil(t, resp)
	require.NoError(t, f.jar.Apply(resp))
	return resp
}

func (f *fixture) selected(t *testing.T) domain.ProductSnapshot {
	t.Helper()
	snap, ok, err := chatdomain.Decode[domain.ProductSnapshot](f.jar.Live(), chatdomain.CtxSelectedProduct, chatdomain.ParamSelectedProduct)
	require.NoError(t, err)
	require.True(t, ok, "selected_product_context expected")
	return snap
}

func (f *fixture) listed(t *testing.T) []domain.Product {
	t.Helper()
	products, ok, err := chatdomain.Decode[[]domain.Product](f.jar.Live(), chatdomain.CtxProductList, chatdomain.ParamProducts)
	require.NoError(t, err)
	require.True(t, ok, "product_list_context expected")
	return products
}

// pickPegasus walks to a selected Nike Pegasus (2.890.000, 10% off, stock 12).
func (f *fixture) pickPegasus(t *testing.T) {
	t.Helper()
	f.say(t, chatdomain.IntentSearchByBrand, "giày Nike", chatdomain.Params{"brand": "Nike"})
	f.say(t, chatdomain.IntentSelectProduct, "chọn 1", nil)
	require.Equal(t, "prod-pegasus", f.selected(t).ID)
}

// checkout goes from a selected Pegasus to a created order.
func (f *fixture) checkout(t *testing.T, contact chatdomain.Params) *chatdomain.WebhookResponse {
	t.Helper()
	f.pickPegasus(t)
	f.say(t, chatdomain.IntentChooseSize, "size 41", chatdomain.Params{"size": 41})
	f.say(t, chatdomain.IntentChooseColor, "màu đen", chatdomain.Params{"color": "Đen"})
	f.say(t, chatdomain.IntentChooseQuantity, "2 đôi", chatdomain.Params{"quantity": 2})
	f.say(t, chatdomain.IntentCollectDeliveryInfo, "giao hàng", contact)
	return f.say(t, chatdomain.IntentChoosePaymentMethod, "thanh toán COD", chatdomain.Params{"payment_method": "COD"})
}

func fullContact() chatdomain.Params {
	return chatdomain.Params{
		"shippingAddress": "12 Lý Thường Kiệt, Hà Nội",
		"phone":           []any{"0901234567"},
		"recipientName":   "Nguyễn An",
	}
}

func orderIDFrom(t *testing.T, resp *chatdomain.WebhookResponse) string {
	t.Helper()
	c, ok := chatdomain.ContextSet(resp.OutputContexts).Find(chatdomain.CtxOrderConfirmation)
	require.True(t, ok, "order_confirmation_context expected")
	id := chatdomain.Params(c.Parameters).String(chatdomain.ParamOrderID)
	require.NotEmpty(t, id)
	return id
}

// --- Search ---

func TestWelcome(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentWelcome, "xin chào", nil)

	assert.True(t, strings.HasPrefix(resp.FulfillmentText, "Xin chào! Tôi là trợ lý ảo của cửa hàng giày."))
	assert.Empty(t, resp.OutputContexts)
}

func TestSearchByPrice_Under2Million(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentSearchByPrice, "giày dưới 2 triệu", chatdomain.Params{"price": "dưới 2 triệu"})

	assert.Contains(t, resp.FulfillmentText, "Tìm thấy 3 sản phẩm với dưới 2 triệu")
	products := f.listed(t)
	require.Len(t, products, 3)
	for _, p := range products {
		assert.LessOrEqual(t, p.Price, 2_000_000.0)
	}

	c, _ := f.jar.Find(chatdomain.CtxProductList)
	assert.Equal(t, "dưới 2 triệu", c.Parameters[chatdomain.ParamSearchCriteria])
	assert.Equal(t, chatdomain.DefaultLifespan, c.LifespanCount)
}

func TestSearch_ResultLimitNeverExceedsFive(t *testing.T) {
	f := newFixture(t)
	f.engine = service.NewEngine(f.catalog, f.orders, f.sessions, f.invoices, phrases.Default(), f.metrics, zap.NewNop(),
		service.Options{UserID: "user-1", SupportContact: support, ResultLimit: 50})

	// all six demo products match
	f.say(t, chatdomain.IntentSearchByPrice, "trên 0", chatdomain.Params{"price": "trên 0"})
	assert.Len(t, f.listed(t), service.DefaultResultLimit)
}

func TestSearchByPrice_StructuredSlots(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentSearchByPrice, "trên 4 triệu", chatdomain.Params{
		"number": []any{4.0}, "price_range": "above_price", "unit": "triệu",
	})

	assert.Contains(t, resp.FulfillmentText, "Tìm thấy 1 sản phẩm với trên 4 triệu")
	assert.Equal(t, "prod-ultraboost", f.listed(t)[0].ID)
}

func TestSearchByPrice_MalformedPhrase(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentSearchByPrice, "khoảng 2 triệu", chatdomain.Params{"price": "khoảng 2 triệu"})

	assert.Contains(t, resp.FulfillmentText, "\"từ 1 đến 3 triệu\"")
	assert.Empty(t, resp.OutputContexts)
}

func TestSearchByPrice_NoPriceGiven(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentSearchByPrice, "giày giá bao nhiêu", nil)

	assert.True(t, strings.HasPrefix(resp.FulfillmentText, "Vui lòng cung cấp thông tin giá cụ thể"))
	assert.Empty(t, resp.OutputContexts)

	// every quoted example in the hint must itself be understood
	parts := strings.Split(resp.FulfillmentText, "\"")
	require.Greater(t, len(parts), 2)
	for i := 1; i < len(parts); i += 2 {
		_, err := pricing.ResolvePriceRange(parts[i])
		assert.NoError(t, err, parts[i])
	}
}

func TestSearchByCategory(t *testing.T) {
	f := newFixture(t)

	resp := f.say(t, chatdomain.IntentSearchByCategory, "giày formal", chatdomain.Params{"category": "formal"})
	assert.Contains(t, resp.FulfillmentText, "Tôi đã tìm thấy 1 sản phẩm trong danh mục Formal")
	assert.Equal(t, "prod-oxford", f.listed(t)[0].ID)

	resp = f.say(t, chatdomain.IntentSearchByCategory, "giày boots", chatdomain.Params{"category": "Boots"})
	assert.Equal(t, `Danh mục "Boots" không tồn tại. Vui lòng chọn một trong các danh mục sau: Running, Casual, Formal`, resp.FulfillmentText)
	assert.Empty(t, resp.OutputContexts)
}

func TestSearchByCategory_EmptyCategory(t *testing.T) {
	f := newFixture(t)
	categories, products := memory.DemoCatalog()
	categories = append(categories, domain.Category{ID: "cat-kids", Name: "Kids"})
	f.engine = f.newEngine(memory.NewCatalogStore(categories, products))

	resp := f.say(t, chatdomain.IntentSearchByCategory, "giày trẻ em", chatdomain.Params{"category": "kids"})
	assert.Equal(t, "Không có sản phẩm nào trong danh mục Kids. Bạn có muốn xem các danh mục khác không?", resp.FulfillmentText)
}

func TestConsult_PurposeAndDiscount(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentConsult, "giày chạy bộ đang giảm giá", chatdomain.Params{
		"purpose": "chạy bộ", "discount": "có",
	})

	assert.Contains(t, resp.FulfillmentText, "Tìm theo: đang giảm giá, phù hợp để chạy bộ")
	products := f.listed(t)
	require.Len(t, products, 1)
	assert.Equal(t, "prod-pegasus", products[0].ID)
	assert.Contains(t, resp.FulfillmentText, "🏷️ Giảm giá: 10% còn 2.601.000 VND")
}

func TestConsult_NoResults(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentConsult, "giày Gucci", chatdomain.Params{"brand": "Gucci"})

	assert.True(t, strings.HasPrefix(resp.FulfillmentText, "Xin lỗi, tôi không tìm thấy sản phẩm nào phù hợp"))
	assert.Empty(t, resp.OutputContexts)
}

// --- Selection ---

func TestSelectProduct_IndexSnapshotsThatProduct(t *testing.T) {
	for i := 1; i <= 3; i++ {
		f := newFixture(t)
		f.say(t, chatdomain.IntentSearchByPrice, "dưới 2 triệu", chatdomain.Params{"price": "dưới 2 triệu"})
		products := f.listed(t)

		f.say(t, chatdomain.IntentSelectProduct, "chọn "+string(rune('0'+i)), nil)
		assert.Equal(t, domain.SnapshotOf(products[i-1]), f.selected(t), "index %d", i)
	}
}

func TestSelectProduct_Choose2Of3(t *testing.T) {
	f := newFixture(t)
	f.say(t, chatdomain.IntentSearchByPrice, "dưới 2 triệu", chatdomain.Params{"price": "dưới 2 triệu"})
	products := f.listed(t)
	require.Len(t, products, 3)

	resp := f.say(t, chatdomain.IntentSelectProduct, "chọn 2", nil)

	assert.Equal(t, products[1].ID, f.selected(t).ID)
	assert.Contains(t, resp.FulfillmentText, "🏷️ Tên sản phẩm: "+products[1].Name)
	assert.Contains(t, resp.FulfillmentText, "Ví dụ: \"Size 41, số lượng 2, màu xanh\"")

	state, err := f.sessions.Load(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, products[1].ID, state.Draft.ProductID)
}

func TestSelectProduct_OutOfRange(t *testing.T) {
	f := newFixture(t)
	f.say(t, chatdomain.IntentSearchByPrice, "dưới 2 triệu", chatdomain.Params{"price": "dưới 2 triệu"})

	resp := f.say(t, chatdomain.IntentSelectProduct, "chọn 9", nil)
	assert.Equal(t, "Không tìm thấy sản phẩm bạn chọn. Vui lòng thử lại với số thứ tự từ 1-3 hoặc tên sản phẩm.", resp.FulfillmentText)
	_, ok := f.jar.Find(chatdomain.CtxSelectedProduct)
	assert.False(t, ok)
}

func TestSelectProduct_WithoutList(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentSelectProduct, "chọn 1", nil)
	assert.Equal(t, "Không tìm thấy danh sách sản phẩm. Vui lòng tìm kiếm sản phẩm trước.", resp.FulfillmentText)
}

func TestSelectProduct_ByNamesThenFiltered(t *testing.T) {
	f := newFixture(t)
	f.say(t, chatdomain.IntentSearchByPrice, "dưới 2 triệu", chatdomain.Params{"price": "dưới 2 triệu"})

	resp := f.say(t, chatdomain.IntentSelectProduct, "vans và converse", chatdomain.Params{"product_name": "vans và converse"})
	assert.True(t, strings.HasPrefix(resp.FulfillmentText, "Bạn đã chọn 2 sản phẩm:"))
	_, ok := f.jar.Find(chatdomain.CtxFilteredProducts)
	require.True(t, ok)

	resp = f.say(t, chatdomain.IntentSelectFilteredProduct, "số 3", nil)
	assert.Equal(t, "Số thứ tự không hợp lệ. Vui lòng chọn số từ 1 đến 2.", resp.FulfillmentText)

	f.say(t, chatdomain.IntentSelectFilteredProduct, "xem chi tiết số 2", nil)
	assert.Equal(t, "prod-chuck", f.selected(t).ID)
}

func TestSearchByPrice_DecomposedPhrase(t *testing.T) {
	f := newFixture(t)
	phrase := norm.NFD.String("dưới 2 triệu")
	resp := f.say(t, chatdomain.IntentSearchByPrice, phrase, chatdomain.Params{"price": phrase})

	assert.Contains(t, resp.FulfillmentText, "Tìm thấy 3 sản phẩm với dưới 2 triệu")
	assert.Len(t, f.listed(t), 3)
}

func TestSelectProduct_DecomposedNames(t *testing.T) {
	f := newFixture(t)
	f.say(t, chatdomain.IntentSearchByPrice, "dưới 2 triệu", chatdomain.Params{"price": "dưới 2 triệu"})

	names := norm.NFD.String("vans và converse")
	resp := f.say(t, chatdomain.IntentSelectProduct, names, chatdomain.Params{"product_name": names})
	assert.True(t, strings.HasPrefix(resp.FulfillmentText, "Bạn đã chọn 2 sản phẩm:"))
}

func TestSelectProduct_OrdinalSlots(t *testing.T) {
	f := newFixture(t)
	f.say(t, chatdomain.IntentSearchByPrice, "dưới 2 triệu", chatdomain.Params{"price": "dưới 2 triệu"})

	f.say(t, chatdomain.IntentSelectProduct, "cái thứ ba", chatdomain.Params{"product_number": []any{3.0}})
	assert.Equal(t, "prod-oldskool", f.selected(t).ID)
}

// --- Size, color, quantity ---

func TestChooseSize(t *testing.T) {
	f := newFixture(t)
	f.pickPegasus(t)

	resp := f.say(t, chatdomain.IntentChooseSize, "size 45", chatdomain.Params{"size": 45})
	assert.Equal(t, "Size 45 không có sẵn. Các size hiện có: 39, 40, 41, 42, 43", resp.FulfillmentText)
	assert.Empty(t, resp.OutputContexts)

	resp = f.say(t, chatdomain.IntentChooseSize, "size 41", chatdomain.Params{"size": 41})
	assert.Equal(t, "Đã chọn size 41. Vui lòng chọn màu sắc.", resp.FulfillmentText)
	require.Len(t, resp.OutputContexts, 1)
	assert.Equal(t, chatdomain.CtxProductSize, resp.OutputContexts[0].Tag())
}

func TestChooseColor(t *testing.T) {
	f := newFixture(t)
	f.pickPegasus(t)

	resp := f.say(t, chatdomain.IntentChooseColor, "màu hồng", chatdomain.Params{"color": "Hồng"})
	assert.Equal(t, "Màu Hồng không có sẵn. Các màu hiện có: Đen, Trắng, Xanh", resp.FulfillmentText)
	assert.Empty(t, resp.OutputContexts)

	resp = f.say(t, chatdomain.IntentChooseColor, "màu trắng", chatdomain.Params{"color": "Trắng"})
	assert.Equal(t, "Đã chọn màu Trắng. Vui lòng chọn số lượng.", resp.FulfillmentText)
}

func TestChooseQuantity_OverStock(t *testing.T) {
	f := newFixture(t)
	f.say(t, chatdomain.IntentSearchByBrand, "adidas", chatdomain.Params{"brand": "Adidas"})
	f.say(t, chatdomain.IntentSelectProduct, "chọn 1", nil)
	require.Equal(t, 5, f.selected(t).StockQuantity)

	resp := f.say(t, chatdomain.IntentChooseQuantity, "7 đôi", chatdomain.Params{"quantity": 7})
	assert.Equal(t, "Xin lỗi, hiện chỉ còn 5 sản phẩm trong kho.", resp.FulfillmentText)
	assert.Empty(t, resp.OutputContexts)
	assert.Zero(t, f.orders.Count())

	resp = f.say(t, chatdomain.IntentChooseQuantity, "0", chatdomain.Params{"quantity": 0})
	assert.Equal(t, "Số lượng không hợp lệ. Vui lòng nhập số lượng lớn hơn 0.", resp.FulfillmentText)
}

func TestChooseSize_WithoutSelection(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentChooseSize, "size 41", chatdomain.Params{"size": 41})

	assert.Equal(t, "Bạn chưa chọn sản phẩm nào. Vui lòng chọn sản phẩm trước.", resp.FulfillmentText)
	assert.Empty(t, resp.OutputContexts)
}

// --- Delivery ---

func TestCollectDeliveryInfo_LostSelection(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentCollectDeliveryInfo, "địa chỉ: 1 Trần Phú", nil)

	assert.Equal(t, "Dữ liệu đã bị mất. Vui lòng quay lại bước chọn sản phẩm và tiến hành mua hàng lại!", resp.FulfillmentText)
	c, ok := f.jar.Find(chatdomain.CtxDeliveryInfo)
	require.True(t, ok)
	assert.Equal(t, true, c.Parameters[chatdomain.ParamIncomplete])
}

func TestCollectDeliveryInfo_AsksForMissingFields(t *testing.T) {
	f := newFixture(t)
	f.pickPegasus(t)
	f.say(t, chatdomain.IntentChooseSize, "41", chatdomain.Params{"size": 41})
	f.say(t, chatdomain.IntentChooseColor, "đen", chatdomain.Params{"color": "Đen"})
	f.say(t, chatdomain.IntentChooseQuantity, "1", chatdomain.Params{"quantity": 1})

	resp := f.say(t, chatdomain.IntentCollectDeliveryInfo, "địa chỉ: 5 Lê Lợi, Huế", nil)
	assert.Equal(t, "Vui lòng cung cấp thêm: số điện thoại, tên người nhận.", resp.FulfillmentText)

	resp = f.say(t, chatdomain.IntentCollectDeliveryInfo, "0901234567, người nhận Lan", chatdomain.Params{
		"phone": []any{"0901234567"}, "recipientName": "Lan",
	})
	assert.True(t, strings.HasPrefix(resp.FulfillmentText, "Thông tin giao hàng đã đầy đủ."))

	draft, ok, err := chatdomain.Decode[domain.OrderDraft](f.jar.Live(), chatdomain.CtxDeliveryInfo, chatdomain.ParamOrder)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5 Lê Lợi, Huế", draft.ShippingAddress)
	assert.Equal(t, "Lan", draft.RecipientName)
	assert.Equal(t, 41, draft.Size)
}

func TestCollectDeliveryInfo_DecomposedAddress(t *testing.T) {
	f := newFixture(t)
	f.pickPegasus(t)
	f.say(t, chatdomain.IntentChooseSize, "41", chatdomain.Params{"size": 41})
	f.say(t, chatdomain.IntentChooseColor, "đen", chatdomain.Params{"color": "Đen"})
	f.say(t, chatdomain.IntentChooseQuantity, "1", chatdomain.Params{"quantity": 1})

	resp := f.say(t, chatdomain.IntentCollectDeliveryInfo, norm.NFD.String("địa chỉ: 5 Lê Lợi, Huế"), nil)
	assert.Equal(t, "Vui lòng cung cấp thêm: số điện thoại, tên người nhận.", resp.FulfillmentText)

	draft, ok, err := chatdomain.Decode[domain.OrderDraft](f.jar.Live(), chatdomain.CtxDeliveryInfo, chatdomain.ParamOrder)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5 Lê Lợi, Huế", draft.ShippingAddress)
}

func TestCollectDeliveryInfo_RecoversFromSession(t *testing.T) {
	f := newFixture(t)
	f.pickPegasus(t)
	f.say(t, chatdomain.IntentChooseSize, "41", chatdomain.Params{"size": 41})
	f.say(t, chatdomain.IntentChooseColor, "đen", chatdomain.Params{"color": "Đen"})
	f.say(t, chatdomain.IntentChooseQuantity, "1", chatdomain.Params{"quantity": 1})

	// the platform dropped every context
	f.jar = replay.NewJar(testSession)

	resp := f.say(t, chatdomain.IntentCollectDeliveryInfo, "giao hàng", fullContact())
	assert.True(t, strings.HasPrefix(resp.FulfillmentText, "Thông tin giao hàng đã đầy đủ."))
}

// --- Payment and confirmation ---

func TestChoosePayment_CreatesExactlyOneOrder(t *testing.T) {
	f := newFixture(t)
	resp := f.checkout(t, fullContact())

	require.Equal(t, 1, f.orders.Count())
	id := orderIDFrom(t, resp)

	order, err := f.orders.GetOrder(context.Background(), id)
	require.NoError(t, err)
	line, ok := order.FirstLine()
	require.True(t, ok)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, domain.PaymentCOD, order.PaymentMethod)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "41", line.Size)
	assert.Equal(t, "Đen", line.Color)
	assert.InDelta(t, 2_601_000.0, line.Price, 0.01)
	assert.InDelta(t, line.Price*2, order.TotalAmount, 0.01)

	assert.Contains(t, resp.FulfillmentText, "🆔 Mã đơn hàng: "+id)
	assert.Contains(t, resp.FulfillmentText, "💵 Thành tiền: 5.202.000 VND")
	assert.True(t, strings.HasSuffix(resp.FulfillmentText, "Bạn có muốn nhận hóa đơn qua email không? (Có/Không)"))

	state, err := f.sessions.Load(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, id, state.Draft.OrderID)
}

func TestChoosePayment_InvalidWording(t *testing.T) {
	f := newFixture(t)
	f.pickPegasus(t)

	resp := f.say(t, chatdomain.IntentChoosePaymentMethod, "bitcoin", chatdomain.Params{"payment_method": "bitcoin"})
	assert.Equal(t, "Phương thức thanh toán không hợp lệ. Vui lòng chọn COD, MOMO hoặc chuyển khoản ngân hàng!", resp.FulfillmentText)
	assert.Zero(t, f.orders.Count())
}

func TestChoosePayment_NoProduct(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentChoosePaymentMethod, "COD", chatdomain.Params{"payment_method": "COD"})

	assert.Equal(t, "Không tìm thấy thông tin sản phẩm. Vui lòng bắt đầu lại từ bước chọn sản phẩm!", resp.FulfillmentText)
	assert.Zero(t, f.orders.Count())
}

func TestConfirm_YesWithoutEmailThenLateEmail(t *testing.T) {
	f := newFixture(t)
	id := orderIDFrom(t, f.checkout(t, fullContact()))

	resp := f.say(t, chatdomain.IntentConfirmOrder, "có", chatdomain.Params{"confirm_email": "có"})
	assert.Equal(t, "📧 Vui lòng cung cấp địa chỉ email của bạn để nhận hóa đơn.", resp.FulfillmentText)
	waiting, ok := f.jar.Find(chatdomain.CtxWaitingForEmail)
	require.True(t, ok)
	assert.Equal(t, id, waiting.Parameters[chatdomain.ParamOrderID])
	assert.Zero(t, f.invoices.count(), "no mail before the address is known")

	resp = f.say(t, chatdomain.IntentProvideLateEmail, "email tôi là an", chatdomain.Params{"email": "an"})
	assert.Equal(t, "Địa chỉ email không hợp lệ. Vui lòng cung cấp email chính xác.", resp.FulfillmentText)
	_, ok = f.jar.Find(chatdomain.CtxWaitingForEmail)
	assert.True(t, ok, "waiting context survives an invalid address")

	resp = f.say(t, chatdomain.IntentProvideLateEmail, "an@example.com", chatdomain.Params{"email": "an@example.com"})
	assert.Equal(t, "✅ Hóa đơn đã được gửi đến an@example.com.\n💌 Cảm ơn bạn đã mua hàng!", resp.FulfillmentText)

	require.Equal(t, 1, f.invoices.count())
	assert.Equal(t, "an@example.com", f.invoices.sent[0].to)
	assert.Equal(t, id, f.invoices.sent[0].order.ID)

	order, err := f.orders.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "an@example.com", order.Email)

	_, ok = f.jar.Find(chatdomain.CtxWaitingForEmail)
	assert.False(t, ok)
	_, ok = f.jar.Find(chatdomain.CtxSelectedProduct)
	assert.False(t, ok)
}

func TestConfirm_YesWithEmailInUtterance(t *testing.T) {
	f := newFixture(t)
	id := orderIDFrom(t, f.checkout(t, fullContact()))

	resp := f.say(t, chatdomain.IntentConfirmOrder, "gửi về an.nguyen@example.vn nhé", nil)
	assert.Equal(t, "✅ Đơn hàng đã được xác nhận!\n📧 Hóa đơn đã được gửi đến an.nguyen@example.vn.\n💌 Cảm ơn bạn đã mua hàng!", resp.FulfillmentText)
	require.Equal(t, 1, f.invoices.count())

	order, err := f.orders.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "an.nguyen@example.vn", order.Email)
}

func TestConfirm_YesUsesDraftEmail(t *testing.T) {
	f := newFixture(t)
	contact := fullContact()
	contact["email"] = "lan@example.com"
	f.checkout(t, contact)

	f.say(t, chatdomain.IntentConfirmOrder, "ok", chatdomain.Params{"confirm_email": "ok"})
	require.Equal(t, 1, f.invoices.count())
	assert.Equal(t, "lan@example.com", f.invoices.sent[0].to)
}

func TestConfirm_NoClearsSession(t *testing.T) {
	f := newFixture(t)
	f.checkout(t, fullContact())

	resp := f.say(t, chatdomain.IntentConfirmOrder, "không cần", chatdomain.Params{"confirm_email": "không cần"})
	assert.Equal(t, "✅ Đơn hàng đã được xác nhận!\n💌 Cảm ơn bạn đã mua hàng! Chúng tôi sẽ liên hệ sớm để xác nhận.", resp.FulfillmentText)
	assert.Zero(t, f.invoices.count())

	state, err := f.sessions.Load(context.Background(), testSession)
	require.NoError(t, err)
	assert.Empty(t, state.Draft.OrderID)
	assert.Nil(t, state.SelectedProduct)

	for _, c := range resp.OutputContexts {
		assert.Zero(t, c.LifespanCount, c.Name)
	}
	_, ok := f.jar.Find(chatdomain.CtxOrderConfirmation)
	assert.False(t, ok)
}

func TestConfirm_AmbiguousAsksAgain(t *testing.T) {
	f := newFixture(t)
	id := orderIDFrom(t, f.checkout(t, fullContact()))

	resp := f.say(t, chatdomain.IntentConfirmOrder, "có mà thôi", chatdomain.Params{"confirm_email": "có mà thôi"})
	assert.Contains(t, resp.FulfillmentText, "Xin lỗi, tôi chưa rõ ý bạn.")
	assert.Contains(t, resp.FulfillmentText, "#"+id)
	assert.Equal(t, id, orderIDFrom(t, resp))
	assert.Zero(t, f.invoices.count())

	resp = f.say(t, chatdomain.IntentConfirmOrder, "hmm", chatdomain.Params{"confirm_email": "hmm"})
	assert.Contains(t, resp.FulfillmentText, "Xin lỗi, tôi chưa rõ ý bạn.")
}

func TestConfirm_WithoutOrder(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentConfirmOrder, "có", nil)

	assert.Equal(t, "Xin lỗi, không thể xác định đơn hàng. Vui lòng bắt đầu lại từ bước chọn sản phẩm hoặc liên hệ "+support+".", resp.FulfillmentText)
}

func TestConfirm_OrderFromSessionWhenContextLost(t *testing.T) {
	f := newFixture(t)
	f.checkout(t, fullContact())
	f.jar = replay.NewJar(testSession)

	f.say(t, chatdomain.IntentConfirmOrder, "có, an@example.com", nil)
	assert.Equal(t, 1, f.invoices.count())
}

func TestConfirm_InvoiceFailureIsReported(t *testing.T) {
	f := newFixture(t)
	id := orderIDFrom(t, f.checkout(t, fullContact()))
	f.invoices.err = &domain.ErrExternalService{Service: "smtp", Err: errors.New("535 auth failed")}

	resp := f.say(t, chatdomain.IntentConfirmOrder, "có, an@example.com", nil)
	assert.Equal(t, "⚠️ Đơn hàng #"+id+" đã được ghi nhận nhưng không thể gửi hóa đơn đến an@example.com. Vui lòng liên hệ "+support+" để được hỗ trợ.", resp.FulfillmentText)

	state, err := f.sessions.Load(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, id, state.Draft.OrderID, "session kept so the user can retry")
	assert.Equal(t, int64(1), f.metrics.GetDialogueSnapshot().InvoicesFailed)
}

func TestProvideLateEmail_WithoutWaitingContext(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, chatdomain.IntentProvideLateEmail, "an@example.com", chatdomain.Params{"email": "an@example.com"})

	assert.Equal(t, "Xin lỗi, không thể xác định đơn hàng để gửi email. Vui lòng liên hệ "+support+".", resp.FulfillmentText)
	assert.Zero(t, f.invoices.count())
}

// --- Errors and metrics ---

func TestStoreFailureBecomesApology(t *testing.T) {
	f := newFixture(t)
	f.engine = f.newEngine(&failingCatalog{
		CatalogStore: f.catalog,
		err:          &domain.ErrExternalService{Service: "supabase", Err: errors.New("connection refused")},
	})

	resp := f.say(t, chatdomain.IntentSearchByBrand, "nike", chatdomain.Params{"brand": "Nike"})
	assert.Equal(t, "Xin lỗi, đã có lỗi xảy ra. Vui lòng thử lại sau hoặc liên hệ hỗ trợ "+support+".", resp.FulfillmentText)
	assert.Empty(t, resp.OutputContexts)

	snap := f.metrics.GetDialogueSnapshot()
	assert.Equal(t, int64(1), snap.TurnsByOutcome[observability.OutcomeError])
}

func TestUnknownIntent(t *testing.T) {
	f := newFixture(t)
	resp := f.say(t, "small_talk", "hôm nay trời đẹp", nil)

	assert.Equal(t, "Xin lỗi, tôi không hiểu yêu cầu của bạn. Vui lòng thử lại hoặc hỏi theo cách khác.", resp.FulfillmentText)
	assert.Empty(t, resp.OutputContexts)
}

func TestTurnMetrics(t *testing.T) {
	f := newFixture(t)
	f.checkout(t, fullContact())
	f.say(t, chatdomain.IntentConfirmOrder, "không", nil)

	snap := f.metrics.GetDialogueSnapshot()
	assert.Equal(t, int64(1), snap.OrdersCreated)
	assert.Equal(t, int64(1), snap.TurnsByOutcome[observability.OutcomeClosed])
	assert.Zero(t, snap.TurnsByOutcome[observability.OutcomeError])
	assert.Equal(t, int64(8), snap.TotalTurns)
}
