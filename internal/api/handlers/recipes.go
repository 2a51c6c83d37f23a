package handlers

import (
	"errors"
	"net/http"

	"recipe-importer/internal/core/store"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListRecipes returns the caller's recipes, newest first.
func (h *Handler) ListRecipes(c *gin.Context) {
	owner, ok := ownerRef(c)
	if !ok {
		return
	}

	recipes, err := h.store.ListRecipes(c.Request.Context(), owner)
	if err != nil {
		common.LogError("Failed to list recipes",
			zap.String("user_ref", owner),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list recipes",
			"code":  "STORE_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// GetRecipe returns one recipe with ingredients and instructions.
func (h *Handler) GetRecipe(c *gin.Context) {
	owner, ok := ownerRef(c)
	if !ok {
		return
	}

	recipe, err := h.store.GetRecipe(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		h.recipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe removes a recipe owned by the caller.
func (h *Handler) DeleteRecipe(c *gin.Context) {
	owner, ok := ownerRef(c)
	if !ok {
		return
	}

	if err := h.store.DeleteRecipe(c.Request.Context(), c.Param("id"), owner); err != nil {
		h.recipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CopyRecipe duplicates a visible recipe into the caller's collection.
func (h *Handler) CopyRecipe(c *gin.Context) {
	owner, ok := ownerRef(c)
	if !ok {
		return
	}

	copied, err := h.store.CopyRecipe(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		h.recipeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, copied)
}

func (h *Handler) recipeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Recipe not found",
			"code":  "RECIPE_NOT_FOUND",
		})
		return
	}
	common.LogError("Recipe operation failed",
		zap.String("recipe_id", c.Param("id")),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Recipe operation failed",
		"code":  "STORE_ERROR",
	})
}
