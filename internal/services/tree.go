package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	errs "github.com/druid0523/task-manager-mcp/internal/errors"
	model "github.com/druid0523/task-manager-mcp/internal/models"
	repository "github.com/druid0523/task-manager-mcp/internal/repositories"
)

// ParseTaskNumber splits a dotted-decimal task number ("1.2.3") into its
// integer levels. Every segment must be an integer.
func ParseTaskNumber(number string) ([]int, error) {
	segments := strings.Split(number, ".")
	levels := make([]int, 0, len(segments))
	for _, segment := range segments {
		level, err := strconv.Atoi(segment)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errs.ErrInvalidTaskNumber, number)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// childNumber appends a sequence position to a parent number. A root with an
// empty number yields bare positions ("1", "2").
func childNumber(parentNumber string, seq int) string {
	if parentNumber == "" {
		return strconv.Itoa(seq)
	}
	return parentNumber + "." + strconv.Itoa(seq)
}

// nextChildNumber picks the position after the highest numeric suffix among
// the existing children. Counting children instead would collide with a
// sibling whose number is above its ordinal position, such as a sole child
// numbered "2" or a gap left by a deletion.
func nextChildNumber(parentNumber string, siblings []model.Task) string {
	max := 0
	for _, sibling := range siblings {
		segments := strings.Split(sibling.Number, ".")
		seq, err := strconv.Atoi(segments[len(segments)-1])
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return childNumber(parentNumber, max+1)
}

// findOrCreateParent walks the number path from the root, creating any
// missing intermediate ancestor on the fly. Auto-created ancestors are named
// after their partial number ("Task 1.2").
func findOrCreateParent(ctx context.Context, repo *repository.TaskRepository, root *model.Task, levels []int) (*model.Task, error) {
	current := root
	for i := range levels {
		parts := make([]string, 0, i+1)
		for _, level := range levels[:i+1] {
			parts = append(parts, strconv.Itoa(level))
		}
		number := strings.Join(parts, ".")

		child, err := repo.GetByRootIDAndNumber(ctx, root.ID, number)
		if err != nil {
			if !errors.Is(err, errs.ErrTaskNotFound) {
				return nil, err
			}
			child = &model.Task{
				Name:     "Task " + number,
				Number:   number,
				RootID:   root.ID,
				ParentID: current.ID,
				IsLeaf:   true,
			}
			if err := repo.Insert(ctx, child); err != nil {
				return nil, err
			}
		}
		current = child
	}
	return current, nil
}
