package enum

// ProductCategory 表示商品分類，空字串代表未分類
type ProductCategory string

const (
	ProductCategoryNone    ProductCategory = ""
	ProductCategoryEbike   ProductCategory = "ebike"
	ProductCategoryBattery ProductCategory = "battery"
	ProductCategoryBike    ProductCategory = "bike"
)

func (c ProductCategory) Valid() bool {
	switch c {
	case ProductCategoryNone, ProductCategoryEbike, ProductCategoryBattery, ProductCategoryBike:
		return true
	}
	return false
}
