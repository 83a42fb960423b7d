package memory

import "github.com/boddenberg/shoeshop-bot-go/internal/domain"

// DemoCatalog is the catalog the server starts with when STORE_BACKEND is
// memory. Ids are stable so scripted conversations can refer to them.
func DemoCatalog() ([]domain.Category, []domain.Product) {
	categories := []domain.Category{
		{ID: "cat-running", Name: "Running", Description: "Giày chạy bộ và thể thao"},
		{ID: "cat-casual", Name: "Casual", Description: "Giày đi chơi hằng ngày"},
		{ID: "cat-formal", Name: "Formal", Description: "Giày công sở, lịch sự"},
	}

	summer := &domain.Discount{
		ID: "disc-summer", Code: "SUMMER10", Description: "Khuyến mãi hè",
		DiscountType: domain.DiscountPercentage, Amount: 10, IsActive: true,
	}
	clearance := &domain.Discount{
		ID: "disc-clearance", Code: "CLEAR25", Description: "Xả kho",
		DiscountType: domain.DiscountPercentage, Amount: 25, IsActive: true,
	}

	products := []domain.Product{
		{
			ID: "prod-pegasus", Name: "Nike Air Zoom Pegasus 40",
			Description: "Giày chạy bộ êm ái cho tập luyện hằng ngày",
			Price:       2890000, CategoryID: "cat-running", Brand: "Nike", Material: "Vải lưới",
			Sizes: []int{39, 40, 41, 42, 43}, Colors: []string{"Đen", "Trắng", "Xanh"},
			StockQuantity: 12, Status: domain.ProductInStock,
			DiscountID: summer.ID, Discount: summer,
		},
		{
			ID: "prod-ultraboost", Name: "Adidas Ultraboost Light",
			Description: "Đệm Boost nhẹ, phù hợp chạy bộ đường dài và thể thao",
			Price:       4200000, CategoryID: "cat-running", Brand: "Adidas", Material: "Primeknit",
			Sizes: []int{40, 41, 42, 43, 44}, Colors: []string{"Trắng", "Đen"},
			StockQuantity: 5, Status: domain.ProductInStock,
		},
		{
			ID: "prod-hunter", Name: "Biti's Hunter X",
			Description: "Giày thể thao giá tốt cho học sinh, sinh viên",
			Price:       990000, CategoryID: "cat-running", Brand: "Biti's", Material: "Vải dệt",
			Sizes: []int{38, 39, 40, 41, 42}, Colors: []string{"Xanh", "Đỏ", "Đen"},
			StockQuantity: 30, Status: domain.ProductInStock,
		},
		{
			ID: "prod-chuck", Name: "Converse Chuck Taylor All Star",
			Description: "Giày vải cổ điển, thời trang đi chơi",
			Price:       1500000, CategoryID: "cat-casual", Brand: "Converse", Material: "Canvas",
			Sizes: []int{37, 38, 39, 40, 41, 42}, Colors: []string{"Đen", "Trắng"},
			StockQuantity: 20, Status: domain.ProductInStock,
		},
		{
			ID: "prod-oldskool", Name: "Vans Old Skool",
			Description: "Giày trượt ván kinh điển, dễ phối đồ đi chơi",
			Price:       1650000, CategoryID: "cat-casual", Brand: "Vans", Material: "Da lộn",
			Sizes: []int{38, 39, 40, 41, 42}, Colors: []string{"Đen", "Xanh"},
			StockQuantity: 8, Status: domain.ProductInStock,
			DiscountID: clearance.ID, Discount: clearance,
		},
		{
			ID: "prod-oxford", Name: "Clarks Oxford Leather",
			Description: "Giày da công sở lịch sự",
			Price:       2400000, CategoryID: "cat-formal", Brand: "Clarks", Material: "Da bò",
			Sizes: []int{39, 40, 41, 42, 43}, Colors: []string{"Nâu", "Đen"},
			StockQuantity: 4, Status: domain.ProductInStock,
		},
	}

	return categories, products
}
