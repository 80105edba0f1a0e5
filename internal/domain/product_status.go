package domain

// ProductStatus is the moderation state of a catalog product
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusArchived  ProductStatus = "archived"
)

// IsValid checks if the product status is valid
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusPublished, ProductStatusArchived:
		return true
	}
	return false
}

func (s ProductStatus) String() string {
	return string(s)
}

// Sync-managed product fields that can be listed in Product.LockedFields
const (
	FieldName             = "name"
	FieldDescriptionShort = "description_short"
	FieldDescriptionLong  = "description_long"
	FieldPrice            = "price"
	FieldImageURL         = "image_url"
	FieldGalleryURLs      = "gallery_urls"
)
