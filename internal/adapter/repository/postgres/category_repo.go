package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/bankrecon/internal/domain"
)

// CategoryRepository implements usecase.CategoryRepository. Rules keep their
// declaration order through a position column.
type CategoryRepository struct {
	db DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create inserts a category and its rules.
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO categories (id, name, created_at, updated_at)
			VALUES ($1, $2, $3, $4)`,
			category.ID, category.Name, category.CreatedAt, category.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: category %s already exists", domain.ErrConflict, category.ID)
			}
			return fmt.Errorf("failed to insert category: %w", err)
		}
		return insertRules(ctx, tx, category)
	})
}

// Update renames a category and replaces its rules. Its position is kept.
func (r *CategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE categories SET name = $2, updated_at = $3
			WHERE id = $1`,
			category.ID, category.Name, category.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update category: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrCategoryNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM expense_rules WHERE category_id = $1`, category.ID); err != nil {
			return fmt.Errorf("failed to clear rules: %w", err)
		}
		return insertRules(ctx, tx, category)
	})
}

// Delete removes a category and its rules.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// GetByID returns one category with its rules.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM categories
		WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	rules, err := r.rules(ctx, `WHERE category_id = $1`, id)
	if err != nil {
		return nil, err
	}
	c.Rules = rules[c.ID]
	return &c, nil
}

// List returns categories in declaration order.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM categories
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		return categories, nil
	}

	rules, err := r.rules(ctx, ``)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		categories[i].Rules = rules[categories[i].ID]
	}
	return categories, nil
}

func (r *CategoryRepository) rules(ctx context.Context, where string, args ...any) (map[string][]domain.ExpenseRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, category_id, pattern, is_regex, case_sensitive
		FROM expense_rules `+where+`
		ORDER BY category_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	defer rows.Close()

	byCategory := make(map[string][]domain.ExpenseRule)
	for rows.Next() {
		var rule domain.ExpenseRule
		if err := rows.Scan(&rule.ID, &rule.CategoryID, &rule.Pattern, &rule.IsRegex, &rule.CaseSensitive); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		byCategory[rule.CategoryID] = append(byCategory[rule.CategoryID], rule)
	}
	return byCategory, rows.Err()
}

func insertRules(ctx context.Context, tx pgx.Tx, category *domain.Category) error {
	for i, rule := range category.Rules {
		_, err := tx.Exec(ctx, `
			INSERT INTO expense_rules (id, category_id, position, pattern, is_regex, case_sensitive)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			rule.ID, category.ID, i, rule.Pattern, rule.IsRegex, rule.CaseSensitive)
		if err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}
	}
	return nil
}

func (r *CategoryRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
