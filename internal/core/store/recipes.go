package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"recipe-importer/internal/core/recipe"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a recipe id does not exist or is not visible
// to the caller.
var ErrNotFound = errors.New("recipe not found")

const importedNotes = "Imported automatically"

// positiveInt clamps parsed cook times and portions to at least 1.
func positiveInt(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Recipe is the persisted read model.
type Recipe struct {
	ID         string    `json:"id"`
	UserRef    string    `json:"user_ref"`
	Title      string    `json:"title"`
	SafeTitle  string    `json:"safe_title"`
	CookTime   int       `json:"cook_time"`
	Portions   int       `json:"portions"`
	ImagePath  string    `json:"image_path,omitempty"`
	Notes      string    `json:"notes"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Ingredients  []Ingredient  `json:"ingredients,omitempty"`
	Instructions []Instruction `json:"instructions,omitempty"`
}

// Ingredient is one flattened ingredient row.
type Ingredient struct {
	ID       int64    `json:"id"`
	Category string   `json:"category,omitempty"`
	Name     string   `json:"name"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

// Instruction is one ordered step.
type Instruction struct {
	ID          int64  `json:"id"`
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
}

// SaveStructured persists a structured recipe for the given owner as one
// transaction. The hero image, when present, is written to disk before the
// recipe row so a stored recipe never references a missing file.
func (s *Store) SaveStructured(ctx context.Context, structured *recipe.StructuredRecipe, owner string) (*Recipe, error) {
	title := strings.TrimSpace(structured.Title)
	if title == "" {
		title = "Untitled"
	}

	imagePath := ""
	if len(structured.ImageBytes) > 0 {
		path, err := s.SaveImage(structured.ImageBytes)
		if err != nil {
			return nil, err
		}
		imagePath = path
	}

	saved := &Recipe{
		ID:         common.GenerateUUID(),
		UserRef:    owner,
		Title:      title,
		SafeTitle:  common.Slugify(title),
		CookTime:   positiveInt(common.FirstInt(structured.CookTime.String(), 1)),
		Portions:   positiveInt(common.FirstInt(structured.Portions.String(), 1)),
		ImagePath:  imagePath,
		Notes:      importedNotes,
		Visibility: "private",
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.removeImage(imagePath)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	saved.CreatedAt = now
	saved.UpdatedAt = now

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recipes (id, user_ref, title, safe_title, cook_time, portions, image_path, notes, visibility, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		saved.ID, saved.UserRef, saved.Title, saved.SafeTitle, saved.CookTime,
		saved.Portions, saved.ImagePath, saved.Notes, saved.Visibility, now, now,
	); err != nil {
		s.removeImage(imagePath)
		return nil, fmt.Errorf("insert recipe: %w", err)
	}

	if err := insertIngredients(ctx, tx, saved.ID, structured.Ingredients); err != nil {
		s.removeImage(imagePath)
		return nil, err
	}
	if err := insertInstructions(ctx, tx, saved.ID, structured.Instructions); err != nil {
		s.removeImage(imagePath)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.removeImage(imagePath)
		return nil, fmt.Errorf("commit recipe: %w", err)
	}

	common.LogInfo("Recipe saved",
		zap.String("recipe_id", saved.ID),
		zap.String("title", saved.Title),
		zap.String("user_ref", owner),
	)
	return saved, nil
}

// insertIngredients flattens category groups into individual rows. Items
// with an empty name are dropped; quantities are normalized to floats where
// the text allows it.
func insertIngredients(ctx context.Context, tx *sql.Tx, recipeID string, groups []recipe.IngredientGroup) error {
	for _, group := range groups {
		category := strings.TrimSpace(group.Category)
		for _, item := range group.Items {
			name := strings.TrimSpace(item.Name)
			if name == "" {
				continue
			}
			quantity := sql.NullFloat64{}
			if value, ok := recipe.ParseQuantity(item.Quantity.String()); ok {
				quantity = sql.NullFloat64{Float64: value, Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ingredients (recipe_ref, category, name, quantity, unit) VALUES (?, ?, ?, ?, ?)`,
				recipeID, category, name, quantity, strings.TrimSpace(item.Unit),
			); err != nil {
				return fmt.Errorf("insert ingredient: %w", err)
			}
		}
	}
	return nil
}

// insertInstructions assigns 1-based step numbers in sequence order.
func insertInstructions(ctx context.Context, tx *sql.Tx, recipeID string, steps []string) error {
	step := 0
	for _, description := range steps {
		description = strings.TrimSpace(description)
		if description == "" {
			continue
		}
		step++
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO instructions (recipe_ref, step_number, description) VALUES (?, ?, ?)`,
			recipeID, step, description,
		); err != nil {
			return fmt.Errorf("insert instruction: %w", err)
		}
	}
	return nil
}

// GetRecipe loads one recipe with its ingredients and instructions. Callers
// see someone else's recipe only when its visibility allows it.
func (s *Store) GetRecipe(ctx context.Context, id, caller string) (*Recipe, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_ref, title, safe_title, cook_time, portions, image_path, notes, visibility, created_at, updated_at
		 FROM recipes WHERE id = ?`, id)

	r := &Recipe{}
	err := row.Scan(&r.ID, &r.UserRef, &r.Title, &r.SafeTitle, &r.CookTime,
		&r.Portions, &r.ImagePath, &r.Notes, &r.Visibility, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load recipe: %w", err)
	}

	if r.UserRef != caller && r.Visibility == "private" {
		return nil, ErrNotFound
	}

	if r.Ingredients, err = s.loadIngredients(ctx, id); err != nil {
		return nil, err
	}
	if r.Instructions, err = s.loadInstructions(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) loadIngredients(ctx context.Context, recipeID string) ([]Ingredient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, name, quantity, unit FROM ingredients WHERE recipe_ref = ? ORDER BY id`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	defer rows.Close()

	items := []Ingredient{}
	for rows.Next() {
		var item Ingredient
		var quantity sql.NullFloat64
		if err := rows.Scan(&item.ID, &item.Category, &item.Name, &quantity, &item.Unit); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		if quantity.Valid {
			item.Quantity = &quantity.Float64
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) loadInstructions(ctx context.Context, recipeID string) ([]Instruction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, step_number, description FROM instructions WHERE recipe_ref = ? ORDER BY step_number`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("load instructions: %w", err)
	}
	defer rows.Close()

	steps := []Instruction{}
	for rows.Next() {
		var step Instruction
		if err := rows.Scan(&step.ID, &step.StepNumber, &step.Description); err != nil {
			return nil, fmt.Errorf("scan instruction: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// ListRecipes returns the caller's recipes, newest first, without child rows.
func (s *Store) ListRecipes(ctx context.Context, owner string) ([]Recipe, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_ref, title, safe_title, cook_time, portions, image_path, notes, visibility, created_at, updated_at
		 FROM recipes WHERE user_ref = ? ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []Recipe{}
	for rows.Next() {
		var r Recipe
		if err := rows.Scan(&r.ID, &r.UserRef, &r.Title, &r.SafeTitle, &r.CookTime,
			&r.Portions, &r.ImagePath, &r.Notes, &r.Visibility, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

// DeleteRecipe removes a recipe owned by the caller, including its stored
// hero image. Deleting someone else's recipe reports not found.
func (s *Store) DeleteRecipe(ctx context.Context, id, owner string) error {
	var imagePath string
	err := s.db.QueryRowContext(ctx,
		`SELECT image_path FROM recipes WHERE id = ? AND user_ref = ?`, id, owner).Scan(&imagePath)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load recipe: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	s.removeImage(imagePath)

	common.LogInfo("Recipe deleted", zap.String("recipe_id", id))
	return nil
}

// CopyRecipe duplicates a visible recipe for a new owner. Ingredients and
// instructions are copied element-wise; the copy gets a fresh id and its own
// image file.
func (s *Store) CopyRecipe(ctx context.Context, id, newOwner string) (*Recipe, error) {
	original, err := s.GetRecipe(ctx, id, newOwner)
	if err != nil {
		return nil, err
	}

	imagePath := ""
	if original.ImagePath != "" {
		data, err := s.ReadImage(original.ImagePath)
		if err == nil {
			imagePath, err = s.SaveImage(data)
			if err != nil {
				return nil, err
			}
		}
	}

	copied := &Recipe{
		ID:         common.GenerateUUID(),
		UserRef:    newOwner,
		Title:      original.Title,
		SafeTitle:  original.SafeTitle,
		CookTime:   original.CookTime,
		Portions:   original.Portions,
		ImagePath:  imagePath,
		Notes:      original.Notes,
		Visibility: "private",
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.removeImage(imagePath)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	copied.CreatedAt = now
	copied.UpdatedAt = now

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recipes (id, user_ref, title, safe_title, cook_time, portions, image_path, notes, visibility, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		copied.ID, copied.UserRef, copied.Title, copied.SafeTitle, copied.CookTime,
		copied.Portions, copied.ImagePath, copied.Notes, copied.Visibility, now, now,
	); err != nil {
		s.removeImage(imagePath)
		return nil, fmt.Errorf("insert recipe copy: %w", err)
	}

	for _, item := range original.Ingredients {
		quantity := sql.NullFloat64{}
		if item.Quantity != nil {
			quantity = sql.NullFloat64{Float64: *item.Quantity, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ingredients (recipe_ref, category, name, quantity, unit) VALUES (?, ?, ?, ?, ?)`,
			copied.ID, item.Category, item.Name, quantity, item.Unit,
		); err != nil {
			s.removeImage(imagePath)
			return nil, fmt.Errorf("copy ingredient: %w", err)
		}
	}
	for _, step := range original.Instructions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO instructions (recipe_ref, step_number, description) VALUES (?, ?, ?)`,
			copied.ID, step.StepNumber, step.Description,
		); err != nil {
			s.removeImage(imagePath)
			return nil, fmt.Errorf("copy instruction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.removeImage(imagePath)
		return nil, fmt.Errorf("commit copy: %w", err)
	}

	copied.Ingredients, _ = s.loadIngredients(ctx, copied.ID)
	copied.Instructions, _ = s.loadInstructions(ctx, copied.ID)

	common.LogInfo("Recipe copied",
		zap.String("source_id", id),
		zap.String("recipe_id", copied.ID),
	)
	return copied, nil
}

// ReplaceIngredients swaps a recipe's ingredient rows for a new set.
func (s *Store) ReplaceIngredients(ctx context.Context, id, owner string, groups []recipe.IngredientGroup) error {
	return s.replaceChildren(ctx, id, owner, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ingredients WHERE recipe_ref = ?`, id); err != nil {
			return fmt.Errorf("clear ingredients: %w", err)
		}
		return insertIngredients(ctx, tx, id, groups)
	})
}

// ReplaceInstructions swaps a recipe's steps for a new sequence, renumbering
// from 1.
func (s *Store) ReplaceInstructions(ctx context.Context, id, owner string, steps []string) error {
	return s.replaceChildren(ctx, id, owner, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM instructions WHERE recipe_ref = ?`, id); err != nil {
			return fmt.Errorf("clear instructions: %w", err)
		}
		return insertInstructions(ctx, tx, id, steps)
	})
}

func (s *Store) replaceChildren(ctx context.Context, id, owner string, apply func(tx *sql.Tx) error) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM recipes WHERE id = ? AND user_ref = ?`, id, owner).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load recipe: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := apply(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE recipes SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch recipe: %w", err)
	}
	return tx.Commit()
}
