package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxCategoryDepth bounds the parent walk of the cycle check.
const maxCategoryDepth = 64

type CatalogRepository interface {
	ListProducts(ctx context.Context, p store.ListParams) (*store.Page[models.Product], error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	ToggleProductPublished(ctx context.Context, id int64) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListCategories(ctx context.Context, p store.ListParams) (*store.Page[models.Category], error)
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	CategoryParentID(ctx context.Context, id int64) (*int64, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

// CatalogCache is implemented by *redisclient.CatalogCache.
type CatalogCache interface {
	// Get reports a hit and the catalog version the lookup ran against;
	// a negative version means the cache is unavailable.
	Get(ctx context.Context, dest interface{}, parts ...string) (version int64, hit bool)
	// Set stores value under version. Entries written for a version that
	// has since been invalidated are never read.
	Set(ctx context.Context, version int64, value interface{}, parts ...string)
	Invalidate(ctx context.Context) error
}

// CatalogService manages products and categories and serves the cached
// storefront catalog.
type CatalogService struct {
	repo  CatalogRepository
	cache CatalogCache
}

// NewCatalogService creates a catalog service. cache may be nil.
func NewCatalogService(repo CatalogRepository, cache CatalogCache) *CatalogService {
	return &CatalogService{repo: repo, cache: cache}
}

// Slugify lower-cases s and joins its letter and digit runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		util.LoggerFromContext(ctx).Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

// ProductInput carries the writable product fields. Nil fields are left
// unchanged on update; SalePrice and CategoryID accept an explicit null.
type ProductInput struct {
	Name        *string                   `json:"name"`
	Slug        *string                   `json:"slug"`
	Description *string                   `json:"description"`
	Price       *decimal.Decimal          `json:"price"`
	SalePrice   Optional[decimal.Decimal] `json:"salePrice"`
	Stock       *int                      `json:"stock"`
	CategoryID  Optional[int64]           `json:"categoryId"`
	IsPublished *bool                     `json:"isPublished"`
	Status      *models.ProductStatus     `json:"status"`
}

func (in *ProductInput) apply(p *models.Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		p.Slug = Slugify(*in.Slug)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.SalePrice.Set {
		p.SalePrice = in.SalePrice.Value
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.CategoryID.Set {
		p.CategoryID = in.CategoryID.Value
	}
	if in.IsPublished != nil {
		p.IsPublished = *in.IsPublished
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
}

func (s *CatalogService) validateProduct(ctx context.Context, p *models.Product) error {
	if p.Name == "" {
		return apperr.InvalidRequest("name is required")
	}
	if p.Price.IsNegative() {
		return apperr.InvalidRequest("price must not be negative")
	}
	if p.SalePrice != nil {
		if p.SalePrice.IsNegative() {
			return apperr.InvalidRequest("salePrice must not be negative")
		}
		if p.SalePrice.GreaterThan(p.Price) {
			return apperr.InvalidRequest("salePrice must not exceed price")
		}
	}
	if p.Stock < 0 {
		return apperr.InvalidRequest("stock must not be negative")
	}
	if !p.Status.Valid() {
		return apperr.InvalidRequest("status must be one of active, archived, draft")
	}
	if p.CategoryID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *p.CategoryID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.InvalidRequest("category %d does not exist", *p.CategoryID)
			}
			return err
		}
	}
	return nil
}

// uniqueSlug derives a slug from the product name, adding a short suffix
// when another product already uses it.
func (s *CatalogService) uniqueSlug(ctx context.Context, name string) (string, error) {
	slug := Slugify(name)
	if slug == "" {
		slug = "product"
	}
	_, err := s.repo.GetProductBySlug(ctx, slug)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return slug, nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("%s-%s", slug, uuid.NewString()[:4]), nil
}

func (s *CatalogService) ListProducts(ctx context.Context, p store.ListParams) (*store.Page[models.Product], error) {
	return s.repo.ListProducts(ctx, p)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *CatalogService) CreateProduct(ctx context.Context, in *ProductInput) (*models.Product, error) {
	p := &models.Product{Status: models.ProductStatusActive}
	in.apply(p)
	if err := s.validateProduct(ctx, p); err != nil {
		return nil, err
	}
	if p.Slug == "" {
		slug, err := s.uniqueSlug(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		p.Slug = slug
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in *ProductInput) (*models.Product, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if err := s.validateProduct(ctx, p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *CatalogService) ToggleProductPublished(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.repo.ToggleProductPublished(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// CategoryInput carries the writable category fields
type CategoryInput struct {
	Name        *string         `json:"name"`
	Code        *string         `json:"code"`
	Description *string         `json:"description"`
	Published   *bool           `json:"published"`
	ParentID    Optional[int64] `json:"parentId"`
}

func (in *CategoryInput) apply(c *models.Category) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Code != nil {
		c.Code = strings.TrimSpace(*in.Code)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Published != nil {
		c.Published = *in.Published
	}
	if in.ParentID.Set {
		c.ParentID = in.ParentID.Value
	}
}

// checkParent verifies that the parent of c exists and that c is not among
// its ancestors.
func (s *CatalogService) checkParent(ctx context.Context, c *models.Category) error {
	if c.ParentID == nil {
		return nil
	}
	if c.ID != 0 && *c.ParentID == c.ID {
		return apperr.InvalidRequest("a category cannot be its own parent")
	}
	if _, err := s.repo.GetCategoryByID(ctx, *c.ParentID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.InvalidRequest("parent category %d does not exist", *c.ParentID)
		}
		return err
	}
	if c.ID == 0 {
		return nil
	}

	current := *c.ParentID
	for depth := 0; depth < maxCategoryDepth; depth++ {
		parent, err := s.repo.CategoryParentID(ctx, current)
		if err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		if *parent == c.ID {
			return apperr.InvalidRequest("parent category %d would create a cycle", *c.ParentID)
		}
		current = *parent
	}
	return apperr.InvalidRequest("category tree is too deep")
}

func validateCategory(c *models.Category) error {
	if c.Name == "" {
		return apperr.InvalidRequest("name is required")
	}
	if c.Code == "" {
		c.Code = Slugify(c.Name)
	}
	return nil
}

func (s *CatalogService) ListCategories(ctx context.Context, p store.ListParams) (*store.Page[models.Category], error) {
	return s.repo.ListCategories(ctx, p)
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return s.repo.GetCategoryByID(ctx, id)
}

func (s *CatalogService) CreateCategory(ctx context.Context, in *CategoryInput) (*models.Category, error) {
	c := &models.Category{Published: true}
	in.apply(c)
	if err := validateCategory(c); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, c); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id int64, in *CategoryInput) (*models.Category, error) {
	c, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(c)
	if err := validateCategory(c); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func listCacheKey(p store.ListParams) []string {
	parts := []string{
		fmt.Sprintf("page=%d", p.Page),
		fmt.Sprintf("limit=%d", p.Limit),
		"q=" + strings.ToLower(strings.TrimSpace(p.Search)),
		"sort=" + p.Sort,
		"dir=" + strings.ToLower(p.Dir),
	}
	if p.CategoryID != nil {
		parts = append(parts, fmt.Sprintf("cat=%d", *p.CategoryID))
	}
	if p.PriceMin != nil {
		parts = append(parts, "min="+p.PriceMin.String())
	}
	if p.PriceMax != nil {
		parts = append(parts, "max="+p.PriceMax.String())
	}
	return parts
}

// StorefrontProducts lists published, active products.
func (s *CatalogService) StorefrontProducts(ctx context.Context, p store.ListParams) (*store.Page[models.Product], error) {
	published := true
	p.Published = &published
	p.Status = string(models.ProductStatusActive)

	key := append([]string{"products"}, listCacheKey(p)...)
	var page store.Page[models.Product]
	version, hit := s.cacheGet(ctx, &page, key...)
	if hit {
		return &page, nil
	}

	result, err := s.repo.ListProducts(ctx, p)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, version, result, key...)
	return result, nil
}

// StorefrontProduct returns a purchasable product by slug.
func (s *CatalogService) StorefrontProduct(ctx context.Context, slug string) (*models.Product, error) {
	key := []string{"product", strings.ToLower(slug)}
	var product models.Product
	version, hit := s.cacheGet(ctx, &product, key...)
	if hit {
		return &product, nil
	}

	p, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !p.Purchasable() {
		return nil, apperr.NotFound("product")
	}
	s.cacheSet(ctx, version, p, key...)
	return p, nil
}

// StorefrontCategories lists published categories.
func (s *CatalogService) StorefrontCategories(ctx context.Context, p store.ListParams) (*store.Page[models.Category], error) {
	published := true
	p.Published = &published

	key := append([]string{"categories"}, listCacheKey(p)...)
	var page store.Page[models.Category]
	version, hit := s.cacheGet(ctx, &page, key...)
	if hit {
		return &page, nil
	}

	result, err := s.repo.ListCategories(ctx, p)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, version, result, key...)
	return result, nil
}

func (s *CatalogService) cacheGet(ctx context.Context, dest interface{}, parts ...string) (int64, bool) {
	if s.cache == nil {
		return -1, false
	}
	return s.cache.Get(ctx, dest, parts...)
}

func (s *CatalogService) cacheSet(ctx context.Context, version int64, value interface{}, parts ...string) {
	if s.cache == nil || version < 0 {
		return
	}
	s.cache.Set(ctx, version, value, parts...)
}

// InvalidateCache drops every cached storefront response.
func (s *CatalogService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}
