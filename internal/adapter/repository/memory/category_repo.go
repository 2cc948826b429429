package memory

import (
	"context"
	"fmt"

	"github.com/iho/bankrecon/internal/domain"
)

// CategoryRepository implements usecase.CategoryRepository.
type CategoryRepository struct {
	store *Store
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(store *Store) *CategoryRepository {
	return &CategoryRepository{store: store}
}

// Create appends a category; declaration order is priority order.
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.indexOf(category.ID) >= 0 {
		return fmt.Errorf("%w: category %s already exists", domain.ErrConflict, category.ID)
	}
	r.store.categories = append(r.store.categories, cloneCategory(*category))
	return nil
}

// Update replaces a category in place, keeping its priority.
func (r *CategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.indexOf(category.ID)
	if i < 0 {
		return domain.ErrCategoryNotFound
	}
	r.store.categories[i] = cloneCategory(*category)
	return nil
}

// Delete removes a category.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return domain.ErrCategoryNotFound
	}
	r.store.categories = append(r.store.categories[:i], r.store.categories[i+1:]...)
	return nil
}

// GetByID returns a copy of the category.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, domain.ErrCategoryNotFound
	}
	c := cloneCategory(r.store.categories[i])
	return &c, nil
}

// List returns copies of all categories in declaration order.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]domain.Category, 0, len(r.store.categories))
	for _, c := range r.store.categories {
		out = append(out, cloneCategory(c))
	}
	return out, nil
}

func (r *CategoryRepository) indexOf(id string) int {
	for i, c := range r.store.categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func cloneCategory(c domain.Category) domain.Category {
	c.Rules = append([]domain.ExpenseRule(nil), c.Rules...)
	return c
}
